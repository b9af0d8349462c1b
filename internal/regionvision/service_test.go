package regionvision

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/udisondev/regionvision/internal/config"
	"github.com/udisondev/regionvision/internal/db"
	"github.com/udisondev/regionvision/internal/geom"
	"github.com/udisondev/regionvision/internal/model"
	"github.com/udisondev/regionvision/internal/region"
	"github.com/udisondev/regionvision/internal/store"
	"github.com/udisondev/regionvision/internal/testutil"
	"github.com/udisondev/regionvision/internal/tick"
	"github.com/udisondev/regionvision/internal/visualize"
	"github.com/udisondev/regionvision/internal/world"
)

var (
	inSpawn  = r3.Vec{X: 1.5, Y: 64, Z: 1.5}
	inBoth   = r3.Vec{X: 6.5, Y: 64, Z: 1.5}
	outside  = r3.Vec{X: 100, Y: 64, Z: 100}
	cfgColor = config.Default().Colors
)

// ServiceSuite: сервис поверх in-memory мира и SQLite хранилища.
type ServiceSuite struct {
	suite.Suite

	ctx      context.Context
	loop     *tick.Loop
	world    *world.Memory
	index    *region.Index
	sessions *region.Sessions
	repo     *db.SQLiteRepository
	cfg      config.Config
	svc      *Service
}

// SetupTest собирает новый сервис для каждого теста.
func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.loop = tick.NewLoop()
	s.world = world.NewMemory(true)
	s.index = testutil.NewIndex(s.T())
	s.sessions = region.NewSessions()
	s.cfg = config.Default()

	var err error
	s.repo, err = db.OpenSQLite(s.ctx, filepath.Join(s.T().TempDir(), "regionvision.db"))
	s.Require().NoError(err)

	s.svc, err = New(s.ctx, s.cfg, Deps{
		Clock:      s.loop,
		Authority:  s.index,
		Selections: s.sessions,
		Presence:   s.world,
		Sink:       s.world,
		Messenger:  s.world,
		Repository: s.repo,
	})
	s.Require().NoError(err)

	s.world.Join(testutil.Alice, testutil.World, inSpawn)
	s.world.Join(testutil.Bob, testutil.World, inSpawn)
}

func (s *ServiceSuite) TearDownTest() {
	_ = s.svc.Close()
	s.loop.Wait()
}

// settle прокручивает цикл, пока фоновые задачи не доедут до тика.
func (s *ServiceSuite) settle() {
	for range 4 {
		s.loop.Wait()
		s.loop.Advance(1)
	}
}

func (s *ServiceSuite) lastEmission(owner uuid.UUID) world.Emission {
	em := s.world.Emissions(owner)
	s.Require().NotEmpty(em)
	return em[len(em)-1]
}

func (s *ServiceSuite) TestShowAt_ColorByMembership() {
	r, err := s.svc.ShowAt(testutil.Alice)
	s.Require().NoError(err)
	s.Equal("spawn", r.ID)

	_, err = s.svc.ShowAt(testutil.Bob)
	s.Require().NoError(err)
	s.settle()

	alice := s.lastEmission(testutil.Alice)
	s.Equal(cfgColor.Allowed, alice.Particle.Color)
	s.Len(alice.Points, geom.CuboidPoints(testutil.Spawn.Box, s.cfg.Visualizer.ParticleDensity))
	s.Equal(cfgColor.Denied, s.lastEmission(testutil.Bob).Particle.Color)
}

func (s *ServiceSuite) TestShowAt_HighestPriority() {
	s.world.Move(testutil.Bob, testutil.World, inBoth)

	r, err := s.svc.ShowAt(testutil.Bob)
	s.Require().NoError(err)
	s.Equal("market", r.ID)
	s.settle()

	s.Equal(cfgColor.Allowed, s.lastEmission(testutil.Bob).Particle.Color, "Bob is a market member")
}

func (s *ServiceSuite) TestShowAt_Errors() {
	s.world.Move(testutil.Alice, testutil.World, outside)
	_, err := s.svc.ShowAt(testutil.Alice)
	s.ErrorIs(err, ErrNoRegion)

	_, err = s.svc.ShowAt(testutil.Player(9))
	s.ErrorIs(err, ErrOwnerOffline)

	_, err = s.svc.View(testutil.Alice, "nowhere")
	s.ErrorIs(err, ErrNoRegion)
}

func (s *ServiceSuite) TestView_ExpiresAfterDuration() {
	s.world.Move(testutil.Alice, testutil.World, outside)

	r, err := s.svc.View(testutil.Alice, "MARKET")
	s.Require().NoError(err)
	s.Equal("market", r.ID)
	s.settle()
	s.True(s.svc.Scheduler().Active(testutil.Alice, visualize.RegionShow))

	s.loop.Advance(int(s.cfg.Visualizer.DurationTicks(s.cfg.TickRate)))
	s.False(s.svc.Scheduler().Active(testutil.Alice, visualize.RegionShow))
}

func (s *ServiceSuite) TestNear_OneJobPerOwner() {
	s.Require().NoError(s.svc.Near(testutil.Alice, 10))
	s.settle()

	s.Equal(1, s.svc.Scheduler().Count())
	em := s.world.Emissions(testutil.Alice)
	s.Require().Len(em, 2, "one layer per region")

	// RegionsNear сортирует по id: market, spawn
	s.Equal(cfgColor.Denied, em[0].Particle.Color)
	s.Equal(cfgColor.Allowed, em[1].Particle.Color)
}

func (s *ServiceSuite) TestNear_InvalidRadius() {
	s.ErrorIs(s.svc.Near(testutil.Alice, 0), model.ErrInvalidParameter)
	s.ErrorIs(s.svc.Near(testutil.Alice, -5), model.ErrInvalidParameter)
	s.Zero(s.svc.Scheduler().Count())
}

func (s *ServiceSuite) TestNear_NothingFound() {
	s.world.Move(testutil.Alice, testutil.World, r3.Vec{X: 5000, Y: 64, Z: 5000})
	s.Require().NoError(s.svc.NearDefault(testutil.Alice))
	s.settle()
	s.Zero(s.svc.Scheduler().Count())
}

func (s *ServiceSuite) TestNear_ClearedWhileQuerying() {
	s.Require().NoError(s.svc.Near(testutil.Alice, 30))
	s.svc.Clear(testutil.Alice)
	s.settle()

	s.Zero(s.svc.Scheduler().Count())
	s.Empty(s.world.Emissions(testutil.Alice))
}

func (s *ServiceSuite) TestNear_LaterShowWins() {
	s.Require().NoError(s.svc.Near(testutil.Alice, 30))
	_, err := s.svc.ShowAt(testutil.Alice)
	s.Require().NoError(err)
	s.settle()

	s.Equal(1, s.svc.Scheduler().Count())
	// только spawn, слоёв near нет
	want := geom.CuboidPoints(testutil.Spawn.Box, s.cfg.Visualizer.ParticleDensity)
	em := s.world.Emissions(testutil.Alice)
	s.Require().NotEmpty(em)
	for _, e := range em {
		s.Len(e.Points, want)
	}
}

func (s *ServiceSuite) TestNear_QuitWhileQuerying() {
	s.Require().NoError(s.svc.Near(testutil.Alice, 30))
	s.svc.OnQuit(testutil.Alice)
	s.settle()

	s.Zero(s.svc.Scheduler().Count())
}

func (s *ServiceSuite) TestInfo() {
	info, err := s.svc.Info(testutil.Alice, "")
	s.Require().NoError(err)
	s.Equal("spawn", info.Region.ID)
	s.True(info.CanBuild)
	s.Nil(info.Permanent)

	_, err = s.svc.AddPermanent(s.ctx, testutil.World, "market")
	s.Require().NoError(err)

	info, err = s.svc.Info(testutil.Alice, "Market")
	s.Require().NoError(err)
	s.False(info.CanBuild)
	s.Require().NotNil(info.Permanent)
	s.Equal(model.DefaultRegionViewDistance, info.Permanent.ViewDistance)
}

func (s *ServiceSuite) TestSelectionPreview() {
	s.sessions.SetPos1(testutil.Alice, testutil.World, model.NewBlockPos(0, 60, 0))
	s.sessions.SetPos2(testutil.Alice, testutil.World, model.NewBlockPos(4, 64, 4))

	var holding atomic.Bool
	holding.Store(true)

	s.svc.OnWandInteract(testutil.Alice, holding.Load)
	s.loop.Advance(int(s.cfg.Visualizer.SelectionDelay))
	s.settle()

	s.True(s.svc.Scheduler().Active(testutil.Alice, visualize.SelectionPreview))
	p := s.lastEmission(testutil.Alice).Particle
	s.Equal(model.Particle{Color: cfgColor.Selection, Size: model.ParticleSizeSelection}, p)

	// выключение чистит всё
	s.False(s.svc.ToggleSelection(testutil.Alice))
	s.Zero(s.svc.Scheduler().Count())

	s.svc.OnWandInteract(testutil.Alice, holding.Load)
	s.loop.Advance(int(s.cfg.Visualizer.SelectionDelay))
	s.settle()
	s.Zero(s.svc.Scheduler().Count())

	s.True(s.svc.ToggleSelection(testutil.Alice))
	s.True(s.svc.SelectionEnabled(testutil.Alice))
}

func (s *ServiceSuite) TestOnMove_EnterNotification() {
	_, err := s.svc.AddPermanent(s.ctx, testutil.World, "spawn")
	s.Require().NoError(err)
	s.Require().NoError(s.svc.SetNotification(s.ctx, "spawn", "title", "<gold>Spawn"))

	s.world.Move(testutil.Alice, testutil.World, outside)
	s.svc.OnMove(testutil.Alice, testutil.World, outside, testutil.World, inSpawn)
	s.loop.Advance(1)

	msgs := s.world.Messages(testutil.Alice)
	s.Require().Len(msgs, 1)
	s.Equal("title", msgs[0].Kind)
	s.Equal("<gold>Spawn", msgs[0].Text)

	// внутри того же блока трекер не вызывается
	s.svc.OnMove(testutil.Alice, testutil.World, inSpawn, testutil.World, r3.Add(inSpawn, r3.Vec{X: 0.2}))
	// внутри региона событие не повторяется
	s.svc.OnMove(testutil.Alice, testutil.World, inSpawn, testutil.World, r3.Add(inSpawn, r3.Vec{X: 1}))
	s.loop.Advance(1)
	s.Len(s.world.Messages(testutil.Alice), 1)
}

func (s *ServiceSuite) TestClear() {
	_, err := s.svc.ShowAt(testutil.Alice)
	s.Require().NoError(err)
	_, err = s.svc.ShowAt(testutil.Bob)
	s.Require().NoError(err)
	s.settle()

	s.Equal(1, s.svc.Clear(testutil.Alice))
	s.Zero(s.svc.Clear(testutil.Alice))
	s.True(s.svc.Scheduler().Active(testutil.Bob, visualize.RegionShow), "other owners keep their jobs")
}

func (s *ServiceSuite) TestOnQuit() {
	_, err := s.svc.ShowAt(testutil.Alice)
	s.Require().NoError(err)
	s.settle()
	s.Require().Equal(1, s.svc.Scheduler().Count())

	s.svc.OnQuit(testutil.Alice)
	s.Zero(s.svc.Scheduler().Count())
	s.Nil(s.svc.tracker.Occupied(testutil.Alice))
}

func (s *ServiceSuite) TestPermanentAdmin() {
	rs, err := s.svc.AddPermanent(s.ctx, testutil.World, "Spawn")
	s.Require().NoError(err)
	s.Equal(model.DefaultRegionSettings("spawn", testutil.World), rs)

	_, err = s.svc.AddPermanent(s.ctx, testutil.World, "nowhere")
	s.ErrorIs(err, store.ErrRegionNotFound)

	c, err := s.svc.SetNamedColor(s.ctx, "spawn", "lime")
	s.Require().NoError(err)
	s.Equal(model.Color{G: 255}, c)

	s.ErrorIs(s.svc.SetColor(s.ctx, "spawn", 0, 300, 0), model.ErrInvalidParameter)
	s.ErrorIs(s.svc.SetNotification(s.ctx, "spawn", "chat", "hi"), model.ErrInvalidParameter)
	s.ErrorIs(s.svc.SetDensity(s.ctx, "spawn", 0), model.ErrInvalidParameter)
	s.ErrorIs(s.svc.SetViewDistance(s.ctx, "market", 10), store.ErrNotPermanent)

	s.Require().NoError(s.svc.SetColor(s.ctx, "spawn", 1, 2, 3))
	s.Require().NoError(s.svc.SetViewDistance(s.ctx, "spawn", 64))
	s.Require().NoError(s.svc.SetParticles(s.ctx, "spawn", false))
	s.Require().NoError(s.svc.SetDensity(s.ctx, "spawn", 1.0))

	s.Eventually(func() bool {
		pts, ok := s.svc.Store().CachedGeometry("spawn")
		return ok && len(pts) == geom.CuboidPoints(testutil.Spawn.Box, 1.0)
	}, time.Second, 5*time.Millisecond)

	// переживает перечитывание из базы
	s.Require().NoError(s.svc.Reload(s.ctx))
	got, ok := s.svc.Store().Get("spawn")
	s.Require().True(ok)
	s.Equal(model.Color{R: 1, G: 2, B: 3}, got.Color)
	s.Equal(64, got.ViewDistance)
	s.False(got.ParticlesEnabled)
	s.InDelta(1.0, got.Density, 1e-9)

	s.Require().NoError(s.svc.RemovePermanent(s.ctx, "SPAWN"))
	s.ErrorIs(s.svc.RemovePermanent(s.ctx, "spawn"), store.ErrNotPermanent)
}

func (s *ServiceSuite) TestPersistenceFailureIsTolerated() {
	_, err := s.svc.AddPermanent(s.ctx, testutil.World, "spawn")
	s.Require().NoError(err)

	s.Require().NoError(s.repo.Close())

	s.Require().NoError(s.svc.SetViewDistance(s.ctx, "spawn", 77))
	got, _ := s.svc.Store().Get("spawn")
	s.Equal(77, got.ViewDistance)
}

func (s *ServiceSuite) TestGlobalRenderer() {
	_, err := s.svc.AddPermanent(s.ctx, testutil.World, "spawn")
	s.Require().NoError(err)
	s.loop.Wait()

	s.svc.Start()
	s.loop.Advance(int(s.cfg.Permanent.RenderDelay))

	em := s.lastEmission(testutil.Alice)
	s.Equal(model.Particle{Color: model.ColorRed, Size: model.ParticleSizeRegion}, em.Particle)
	s.EqualValues(1, s.svc.Renderer().Passes())

	s.Require().NoError(s.svc.Close())
	s.loop.Advance(int(s.cfg.Permanent.RenderPeriod) * 2)
	s.EqualValues(1, s.svc.Renderer().Passes())
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Visualizer.ParticleDensity = 0

	repo, err := db.NewYAMLRepository(filepath.Join(t.TempDir(), "permanent_regions.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = New(context.Background(), cfg, Deps{Repository: repo})
	if err == nil {
		t.Fatal("expected error")
	}
}
