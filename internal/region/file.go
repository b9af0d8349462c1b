package region

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/udisondev/regionvision/internal/model"
)

// fileRegion is one region in a regions file.
//
//	worlds:
//	  world:
//	    - id: spawn
//	      min: [0, 60, 0]
//	      max: [31, 90, 31]
//	      priority: 10
//	      owners: ["<uuid>"]
//	      members: []
type fileRegion struct {
	ID       string      `yaml:"id"`
	Min      [3]int      `yaml:"min"`
	Max      [3]int      `yaml:"max"`
	Priority int         `yaml:"priority"`
	Owners   []uuid.UUID `yaml:"owners"`
	Members  []uuid.UUID `yaml:"members"`
}

type regionsFile struct {
	Worlds map[string][]fileRegion `yaml:"worlds"`
}

// LoadFile defines every region listed in a YAML regions file.
// A missing file defines nothing.
func (x *Index) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading regions %s: %w", path, err)
	}

	var f regionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("parsing regions %s: %w", path, err)
	}

	n := 0
	for world, regions := range f.Worlds {
		for _, fr := range regions {
			r := model.Region{
				ID:    fr.ID,
				World: world,
				Box: model.NewBox(
					model.NewBlockPos(fr.Min[0], fr.Min[1], fr.Min[2]),
					model.NewBlockPos(fr.Max[0], fr.Max[1], fr.Max[2]),
				),
				Priority: fr.Priority,
			}
			if err := x.Define(r, fr.Owners, fr.Members); err != nil {
				return n, fmt.Errorf("loading regions %s: %w", path, err)
			}
			n++
		}
	}
	return n, nil
}
