package report

import (
	"fmt"

	"fabdrop/internal/artifact"
	"fabdrop/internal/semantic"
	apperrors "fabdrop/pkg/errors"
)

type datasetReference struct {
	ByPath struct {
		Path string `json:"path"`
	} `json:"byPath"`
}

type pbir struct {
	Schema           string           `json:"$schema"`
	Version          string           `json:"version"`
	DatasetReference datasetReference `json:"datasetReference"`
}

type reportVersion struct {
	Visual string `json:"visual"`
	Report string `json:"report"`
	Page   string `json:"page"`
}

type theme struct {
	Name                  string        `json:"name"`
	ReportVersionAtImport reportVersion `json:"reportVersionAtImport"`
	Type                  string        `json:"type"`
}

type reportDefinition struct {
	Schema          string `json:"$schema"`
	ThemeCollection struct {
		BaseTheme theme `json:"baseTheme"`
	} `json:"themeCollection"`
}

type versionMetadata struct {
	Schema  string `json:"$schema"`
	Version string `json:"version"`
}

type pagesMetadata struct {
	Schema         string   `json:"$schema"`
	PageOrder      []string `json:"pageOrder"`
	ActivePageName string   `json:"activePageName"`
}

type pageDefinition struct {
	Schema        string  `json:"$schema"`
	Name          string  `json:"name"`
	DisplayName   string  `json:"displayName"`
	DisplayOption string  `json:"displayOption"`
	Height        int     `json:"height"`
	Width         int     `json:"width"`
	Objects       Objects `json:"objects"`
}

// LogicalIDKey is the id key of the report item.
func LogicalIDKey(reportName string) string {
	return "rpt_" + reportName
}

// Builder renders report pages bound to a semantic model folder.
type Builder struct {
	ReportName string
	ModelName  string
	Pages      []Page
	// Model, when set, is used to check every column and measure reference.
	Model *semantic.Model
}

// Build returns the report folder contents, relative to the
// <name>.Report directory. Visuals are named v0001, v0002, ... in page order.
func (b *Builder) Build() (artifact.FileSet, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	files := artifact.FileSet{}
	add := func(path string, v interface{}) error { return files.AddJSON(path, v) }

	def := pbir{Schema: pbirSchema, Version: "4.0"}
	def.DatasetReference.ByPath.Path = "../" + b.ModelName + ".SemanticModel"

	rep := reportDefinition{Schema: reportSchema}
	rep.ThemeCollection.BaseTheme = theme{
		Name:                  "CY25SU10",
		ReportVersionAtImport: reportVersion{Visual: "2.1.0", Report: "3.0.0", Page: "2.3.0"},
		Type:                  "SharedResources",
	}

	meta := pagesMetadata{Schema: pagesSchema, ActivePageName: b.Pages[0].Name}
	for _, p := range b.Pages {
		meta.PageOrder = append(meta.PageOrder, p.Name)
	}

	for _, f := range []struct {
		path string
		v    interface{}
	}{
		{".platform", semantic.NewPlatform("Report", b.ReportName, LogicalIDKey(b.ReportName))},
		{"definition.pbir", def},
		{"definition/report.json", rep},
		{"definition/version.json", versionMetadata{Schema: versionSchema, Version: "2.0.0"}},
		{"definition/pages/pages.json", meta},
	} {
		if err := add(f.path, f.v); err != nil {
			return nil, err
		}
	}

	background := Objects{}.set("background", Properties{
		"color":        solid(pageBackground),
		"transparency": lit("0D"),
	})
	n := 0
	for _, p := range b.Pages {
		dir := "definition/pages/" + p.Name
		page := pageDefinition{
			Schema:        pageSchema,
			Name:          p.Name,
			DisplayName:   p.DisplayName,
			DisplayOption: "FitToPage",
			Height:        PageHeight,
			Width:         PageWidth,
			Objects:       background,
		}
		if err := add(dir+"/page.json", page); err != nil {
			return nil, err
		}
		for _, v := range p.Visuals {
			n++
			v.Name = fmt.Sprintf("v%04d", n)
			if err := add(dir+"/visuals/"+v.Name+"/visual.json", v); err != nil {
				return nil, err
			}
		}
	}
	return files, nil
}

func (b *Builder) validate() error {
	if b.ReportName == "" {
		return apperrors.ConfigError("report name is empty", "report.report_name")
	}
	if b.ModelName == "" {
		return apperrors.ConfigError("semantic model name is empty", "report.model_name")
	}
	if len(b.Pages) == 0 {
		return apperrors.New(apperrors.ErrCodeConfigInvalid, "report has no pages")
	}
	seen := make(map[string]bool, len(b.Pages))
	for _, p := range b.Pages {
		if p.Name == "" || seen[p.Name] {
			return apperrors.New(apperrors.ErrCodeConfigInvalid, fmt.Sprintf("invalid or duplicate page name %q", p.Name))
		}
		seen[p.Name] = true
	}
	if b.Model == nil {
		return nil
	}

	measures := make(map[string]bool, len(b.Model.Measures))
	for _, ms := range b.Model.Measures {
		measures[ms.Name] = true
	}
	for _, p := range b.Pages {
		for _, v := range p.Visuals {
			for _, ref := range v.Measures() {
				if ref.Table != b.Model.MeasureTable || !measures[ref.Name] {
					return unknownRef(p.Name, "measure", ref)
				}
			}
			for _, ref := range v.Columns() {
				t, ok := b.Model.Table(ref.Table)
				if !ok || !hasColumn(t, ref.Name) {
					return unknownRef(p.Name, "column", ref)
				}
			}
		}
	}
	return nil
}

func hasColumn(t *semantic.Table, name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

func unknownRef(page, kind string, ref Ref) error {
	return apperrors.New(apperrors.ErrCodeConfigInvalid,
		fmt.Sprintf("page %s references unknown %s %s", page, kind, ref)).
		WithContext("page", page)
}
