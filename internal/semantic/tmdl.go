package semantic

import (
	"fmt"
	"strings"

	"fabdrop/internal/artifact"
)

const (
	schemaBase     = "https://developer.microsoft.com/json-schemas/fabric"
	platformSchema = schemaBase + "/gitIntegration/platformProperties/2.0.0/schema.json"
	pbismSchema    = schemaBase + "/item/semanticModel/definitionProperties/1.0.0/schema.json"

	// Direct Lake needs compatibility level 1604 or later.
	compatibilityLevel = 1604
	lakeExpression     = "DirectLake - lakehouse"
)

// Platform is the .platform file shared by every git-integrated item.
type Platform struct {
	Schema   string           `json:"$schema"`
	Metadata PlatformMetadata `json:"metadata"`
	Config   PlatformConfig   `json:"config"`
}

// PlatformMetadata names the item.
type PlatformMetadata struct {
	Type        string `json:"type"`
	DisplayName string `json:"displayName"`
}

// PlatformConfig carries the item's logical id.
type PlatformConfig struct {
	Version   string `json:"version"`
	LogicalID string `json:"logicalId"`
}

// NewPlatform builds the .platform document for an item. The logical id is
// derived from key, so repeated deploys address the same item.
func NewPlatform(itemType, displayName, key string) Platform {
	return Platform{
		Schema:   platformSchema,
		Metadata: PlatformMetadata{Type: itemType, DisplayName: displayName},
		Config:   PlatformConfig{Version: "2.0", LogicalID: artifact.ID(key)},
	}
}

// LogicalIDKey is the id key of the semantic model item.
func LogicalIDKey(modelName string) string {
	return "sm_" + modelName
}

type pbism struct {
	Schema   string   `json:"$schema"`
	Version  string   `json:"version"`
	Settings struct{} `json:"settings"`
}

// Builder renders a Model bound to one lakehouse.
type Builder struct {
	Model       Model
	WorkspaceID string
	LakehouseID string
	// OneLakeURL is the OneLake DFS endpoint, e.g. https://onelake.dfs.fabric.microsoft.com.
	OneLakeURL string
}

// Build returns the semantic model folder contents, relative to the
// <name>.SemanticModel directory.
func (b *Builder) Build() (artifact.FileSet, error) {
	if err := b.Model.Validate(); err != nil {
		return nil, err
	}

	files := artifact.FileSet{}
	if err := files.AddJSON(".platform", NewPlatform("SemanticModel", b.Model.Name, LogicalIDKey(b.Model.Name))); err != nil {
		return nil, err
	}
	if err := files.AddJSON("definition.pbism", pbism{Schema: pbismSchema, Version: "4.2"}); err != nil {
		return nil, err
	}
	files.AddString("definition/database.tmdl", fmt.Sprintf("database\n\tcompatibilityLevel: %d\n", compatibilityLevel))
	files.AddString("definition/model.tmdl", b.modelTMDL())
	files.AddString("definition/expressions.tmdl", b.expressionsTMDL())
	files.AddString("definition/relationships.tmdl", b.relationshipsTMDL())
	for _, t := range b.Model.Tables {
		var measures []Measure
		if t.Name == b.Model.MeasureTable {
			measures = b.Model.Measures
		}
		files.AddString("definition/tables/"+t.Name+".tmdl", b.tableTMDL(t, measures))
	}
	return files, nil
}

// tag is a lineage tag scoped to this model.
func (b *Builder) tag(key string) string {
	return artifact.ID(b.Model.Name + "/" + key)
}

func (b *Builder) modelTMDL() string {
	var sb strings.Builder
	sb.WriteString("model Model\n" +
		"\tculture: en-US\n" +
		"\tdefaultPowerBIDataSourceVersion: powerBI_V3\n" +
		"\tsourceQueryCulture: en-US\n" +
		"\tdataAccessOptions\n" +
		"\t\tlegacyRedirects\n" +
		"\t\treturnErrorValuesAsNull\n\n")
	fmt.Fprintf(&sb, "annotation PBI_QueryOrder = [\"%s\"]\n\n", lakeExpression)
	sb.WriteString("annotation __PBI_TimeIntelligenceEnabled = 1\n\n")
	sb.WriteString("annotation PBI_ProTooling = [\"RemoteModeling\",\"DirectLakeOnOneLakeCreatedInDesktop\"]\n\n")
	for _, t := range b.Model.Tables {
		fmt.Fprintf(&sb, "ref table %s\n", t.Name)
	}
	fmt.Fprintf(&sb, "\nref expression '%s'\n\nref cultureInfo en-US\n", lakeExpression)
	return sb.String()
}

func (b *Builder) expressionsTMDL() string {
	source := fmt.Sprintf("%s/%s/%s", strings.TrimRight(b.OneLakeURL, "/"), b.WorkspaceID, b.LakehouseID)
	return fmt.Sprintf("expression '%s' =\n"+
		"\t\tlet\n"+
		"\t\t\tSource = AzureStorage.DataLake(\"%s\", [HierarchicalNavigation=true])\n"+
		"\t\tin\n"+
		"\t\t\tSource\n"+
		"\tlineageTag: %s\n\n"+
		"\tannotation PBI_IncludeFutureArtifacts = False\n",
		lakeExpression, source, b.tag("expr_dl"))
}

func (b *Builder) relationshipsTMDL() string {
	var sb strings.Builder
	for i, r := range b.Model.Relationships {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "relationship %s\n", b.tag(r.Key()))
		if r.ManyToMany {
			sb.WriteString("\tfromCardinality: many\n\ttoCardinality: many\n")
		}
		fmt.Fprintf(&sb, "\tfromColumn: %s.%s\n", r.FromTable, r.FromColumn)
		fmt.Fprintf(&sb, "\ttoColumn: %s.%s\n", r.ToTable, r.ToColumn)
		if r.BothDirections {
			sb.WriteString("\tcrossFilteringBehavior: bothDirections\n")
		}
		if r.Inactive {
			sb.WriteString("\tisActive: false\n")
		}
	}
	return sb.String()
}

func (b *Builder) tableTMDL(t Table, measures []Measure) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "table %s\n", t.Name)
	fmt.Fprintf(&sb, "\tlineageTag: %s\n", b.tag("table_"+t.Name))
	fmt.Fprintf(&sb, "\tsourceLineageTag: [dbo].[%s]\n\n", t.Name)

	for _, m := range measures {
		fmt.Fprintf(&sb, "\tmeasure '%s' = %s\n", quoteName(m.Name), m.Expression)
		if m.FormatString != "" {
			fmt.Fprintf(&sb, "\t\tformatString: %s\n", m.FormatString)
		}
		fmt.Fprintf(&sb, "\t\tlineageTag: %s\n\n", b.tag("measure_"+m.Name))
	}

	for _, c := range t.Columns {
		fmt.Fprintf(&sb, "\tcolumn %s\n", c.Name)
		fmt.Fprintf(&sb, "\t\tdataType: %s\n", c.DataType.TMDL())
		switch {
		case c.DataType == DateTime:
			sb.WriteString("\t\tformatString: General Date\n")
		case c.DataType.Numeric():
			sb.WriteString("\t\tformatString: 0\n")
		}
		fmt.Fprintf(&sb, "\t\tlineageTag: %s\n", b.tag("col_"+t.Name+"_"+c.Name))
		fmt.Fprintf(&sb, "\t\tsourceLineageTag: %s\n", c.Name)
		sb.WriteString("\t\tsummarizeBy: none\n")
		fmt.Fprintf(&sb, "\t\tsourceColumn: %s\n\n", c.Name)
		sb.WriteString("\t\tannotation SummarizationSetBy = Automatic\n\n")
	}

	fmt.Fprintf(&sb, "\tpartition %s = entity\n", t.Name)
	sb.WriteString("\t\tmode: directLake\n\t\tsource\n")
	fmt.Fprintf(&sb, "\t\t\tentityName: %s\n", t.Name)
	fmt.Fprintf(&sb, "\t\t\texpressionSource: '%s'\n", lakeExpression)
	return sb.String()
}

// quoteName escapes a single-quoted TMDL object name.
func quoteName(name string) string {
	return strings.ReplaceAll(name, "'", "''")
}
