package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/DIMO-Network/ear/pkg/ear"
	"github.com/DIMO-Network/ear/pkg/extensions"
)

// profileDecl is one entry in a --profiles file: a profile identifier plus
// the extension fields it declares at the token and submodule levels.
//
//	[
//	  {
//	    "id": "tag:example.com,2025:acme",
//	    "ear": [{"name": "ext.company-name", "key": -65537, "kind": "Text"}],
//	    "appraisal": [{"name": "ext.timestamp", "key": -65537, "kind": "Integer"}]
//	  }
//	]
type profileDecl struct {
	ID        string                   `json:"id"`
	Ear       []extensions.Declaration `json:"ear,omitempty"`
	Appraisal []extensions.Declaration `json:"appraisal,omitempty"`
}

// registerProfilesFile loads profile declarations from a JSON file and adds
// them to the process profile registry. It returns the number of profiles
// registered.
func registerProfilesFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var decls []profileDecl
	if err := json.Unmarshal(data, &decls); err != nil {
		return 0, fmt.Errorf("failed to parse profile declarations: %w", err)
	}

	for _, d := range decls {
		profile := ear.NewProfile(d.ID)
		for _, x := range d.Ear {
			if err := profile.RegisterEarExtension(x.Name, x.Key, x.Kind); err != nil {
				return 0, fmt.Errorf("profile %s: %w", d.ID, err)
			}
		}
		for _, x := range d.Appraisal {
			if err := profile.RegisterAppraisalExtension(x.Name, x.Key, x.Kind); err != nil {
				return 0, fmt.Errorf("profile %s: %w", d.ID, err)
			}
		}
		if err := ear.RegisterProfile(profile); err != nil {
			return 0, err
		}
	}
	return len(decls), nil
}
