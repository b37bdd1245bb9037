// Package report builds the PBIR report definition: pages of visuals bound
// to the semantic model's columns and measures.
package report

import (
	"fmt"
	"strings"
)

const (
	schemaBase      = "https://developer.microsoft.com/json-schemas/fabric"
	definitionBase  = schemaBase + "/item/report/definition"
	visualSchema    = definitionBase + "/visualContainer/2.5.0/schema.json"
	pageSchema      = definitionBase + "/page/2.0.0/schema.json"
	reportSchema    = definitionBase + "/report/3.1.0/schema.json"
	versionSchema   = definitionBase + "/versionMetadata/1.0.0/schema.json"
	pagesSchema     = definitionBase + "/pagesMetadata/1.0.0/schema.json"
	pbirSchema      = schemaBase + "/item/report/definitionProperties/2.0.0/schema.json"
	visualTypeCard  = "card"
	visualTypeTable = "tableEx"
)

// Aggregate is the aggregation applied to a chart's value column.
type Aggregate int

const (
	Sum           Aggregate = 0
	Avg           Aggregate = 1
	DistinctCount Aggregate = 2
)

func (a Aggregate) String() string {
	switch a {
	case Avg:
		return "Avg"
	case DistinctCount:
		return "DistinctCount"
	default:
		return "Sum"
	}
}

// Ref names a model column or measure.
type Ref struct {
	Table string
	Name  string
}

// Col is shorthand for a column reference.
func Col(table, name string) Ref { return Ref{Table: table, Name: name} }

func (r Ref) String() string { return r.Table + "." + r.Name }

type entity struct {
	Entity string `json:"Entity"`
}

type sourceRef struct {
	SourceRef entity `json:"SourceRef"`
}

type property struct {
	Expression sourceRef `json:"Expression"`
	Property   string    `json:"Property"`
}

type aggregation struct {
	Expression Field     `json:"Expression"`
	Function   Aggregate `json:"Function"`
}

// Field is a query field: exactly one of Column, Measure or Aggregation is set.
type Field struct {
	Column      *property    `json:"Column,omitempty"`
	Measure     *property    `json:"Measure,omitempty"`
	Aggregation *aggregation `json:"Aggregation,omitempty"`
}

func columnField(r Ref) Field {
	return Field{Column: &property{Expression: sourceRef{entity{r.Table}}, Property: r.Name}}
}

func measureField(r Ref) Field {
	return Field{Measure: &property{Expression: sourceRef{entity{r.Table}}, Property: r.Name}}
}

func aggregateField(r Ref, fn Aggregate) Field {
	return Field{Aggregation: &aggregation{Expression: columnField(r), Function: fn}}
}

// Projection places a field in a query role.
type Projection struct {
	Field          Field  `json:"field"`
	QueryRef       string `json:"queryRef"`
	NativeQueryRef string `json:"nativeQueryRef"`
	Active         bool   `json:"active"`
}

func column(r Ref) Projection {
	return Projection{Field: columnField(r), QueryRef: r.String(), NativeQueryRef: r.Name, Active: true}
}

func measure(r Ref) Projection {
	return Projection{Field: measureField(r), QueryRef: r.String(), NativeQueryRef: r.Name, Active: true}
}

func aggregate(r Ref, fn Aggregate) Projection {
	return Projection{
		Field:          aggregateField(r, fn),
		QueryRef:       fmt.Sprintf("%s(%s)", fn, r),
		NativeQueryRef: r.Name,
		Active:         true,
	}
}

// Role is one well of a visual's query (Values, Category, Y, Rows...).
type Role struct {
	Projections []Projection `json:"projections"`
}

// Query is the visual's data binding.
type Query struct {
	QueryState map[string]Role `json:"queryState"`
}

// Properties are formatting properties of one object.
type Properties map[string]interface{}

type propertySet struct {
	Properties Properties `json:"properties"`
}

// Objects are formatting objects keyed by object name.
type Objects map[string][]propertySet

func (o Objects) set(name string, props Properties) Objects {
	o[name] = []propertySet{{Properties: props}}
	return o
}

type literalValue struct {
	Value string `json:"Value"`
}

type literalExpr struct {
	Literal literalValue `json:"Literal"`
}

type exprValue struct {
	Expr literalExpr `json:"expr"`
}

type colorValue struct {
	Color string `json:"color"`
}

type solidValue struct {
	Solid colorValue `json:"solid"`
}

func lit(v string) exprValue { return exprValue{Expr: literalExpr{Literal: literalValue{Value: v}}} }

func text(s string) exprValue { return lit("'" + strings.ReplaceAll(s, "'", "''") + "'") }

func solid(color string) solidValue { return solidValue{Solid: colorValue{Color: color}} }

func titleProps(title string) Properties {
	return Properties{"show": lit("true"), "text": text(title)}
}

// Rect is a visual's position on the page in pixels.
type Rect struct {
	X, Y, W, H int
}

// Position is the serialized Rect.
type Position struct {
	X        int `json:"x"`
	Y        int `json:"y"`
	Width    int `json:"width"`
	Height   int `json:"height"`
	Z        int `json:"z"`
	TabOrder int `json:"tabOrder"`
}

// Body is the visual definition inside a container.
type Body struct {
	VisualType              string  `json:"visualType"`
	Query                   Query   `json:"query"`
	Objects                 Objects `json:"objects,omitempty"`
	VisualContainerObjects  Objects `json:"visualContainerObjects,omitempty"`
	DrillFilterOtherVisuals bool    `json:"drillFilterOtherVisuals"`
}

// Visual is a visual container, serialized as visuals/<name>/visual.json.
// Name is assigned when the report is built.
type Visual struct {
	Schema   string   `json:"$schema"`
	Name     string   `json:"name"`
	Position Position `json:"position"`
	Visual   Body     `json:"visual"`

	measures []Ref
	columns  []Ref
}

func newVisual(r Rect, visualType string, query map[string]Role) Visual {
	return Visual{
		Schema:   visualSchema,
		Position: Position{X: r.X, Y: r.Y, Width: r.W, Height: r.H},
		Visual: Body{
			VisualType:              visualType,
			Query:                   Query{QueryState: query},
			DrillFilterOtherVisuals: true,
		},
	}
}

// Measures lists the measures the visual reads.
func (v Visual) Measures() []Ref { return v.measures }

// Columns lists the columns the visual reads.
func (v Visual) Columns() []Ref { return v.columns }

// Card shows one measure with a small title.
func Card(r Rect, m Ref, title string) Visual {
	v := newVisual(r, visualTypeCard, map[string]Role{"Values": {Projections: []Projection{measure(m)}}})
	v.Visual.Objects = Objects{}.
		set("labels", Properties{"fontSize": lit("18D")}).
		set("categoryLabels", Properties{"show": lit("false")})
	props := titleProps(title)
	props["fontSize"] = lit("8D")
	v.Visual.VisualContainerObjects = Objects{}.set("title", props)
	v.measures = []Ref{m}
	return v
}

// StyledCard is a Card on a solid, rounded background.
func StyledCard(r Rect, m Ref, title, background, foreground string) Visual {
	v := newVisual(r, visualTypeCard, map[string]Role{"Values": {Projections: []Projection{measure(m)}}})
	v.Visual.Objects = Objects{}.
		set("labels", Properties{"color": solid(foreground), "fontSize": lit("20D")}).
		set("categoryLabels", Properties{"show": lit("false")})
	props := titleProps(title)
	props["fontColor"] = solid(foreground)
	props["fontSize"] = lit("8D")
	v.Visual.VisualContainerObjects = Objects{}.
		set("title", props).
		set("background", Properties{"show": lit("true"), "color": solid(background), "transparency": lit("0D")}).
		set("border", Properties{"show": lit("true"), "color": solid(background), "radius": lit("6D")})
	v.measures = []Ref{m}
	return v
}

// Slicer is a dropdown filter on one column.
func Slicer(r Rect, c Ref, title string) Visual {
	v := newVisual(r, "slicer", map[string]Role{"Values": {Projections: []Projection{column(c)}}})
	v.Visual.Objects = Objects{}.
		set("data", Properties{"mode": lit("'Dropdown'")}).
		set("general", Properties{"selfFilterEnabled": lit("true")})
	v.Visual.VisualContainerObjects = Objects{}.set("title", titleProps(title))
	v.columns = []Ref{c}
	return v
}

// Table lists columns row by row.
func Table(r Rect, title string, cols ...Ref) Visual {
	projections := make([]Projection, len(cols))
	for i, c := range cols {
		projections[i] = column(c)
	}
	v := newVisual(r, visualTypeTable, map[string]Role{"Values": {Projections: projections}})
	v.Visual.VisualContainerObjects = Objects{}.set("title", titleProps(title))
	v.columns = cols
	return v
}

// ChartType selects a category/value chart.
type ChartType string

const (
	BarChart    ChartType = "clusteredBarChart"
	ColumnChart ChartType = "clusteredColumnChart"
	PieChart    ChartType = "pieChart"
	DonutChart  ChartType = "donutChart"
)

// Chart plots fn(value) per category with data labels on.
func Chart(kind ChartType, r Rect, category, value Ref, fn Aggregate, title string) Visual {
	v := newVisual(r, string(kind), map[string]Role{
		"Category": {Projections: []Projection{column(category)}},
		"Y":        {Projections: []Projection{aggregate(value, fn)}},
	})
	labels := Properties{"show": lit("true")}
	if kind == DonutChart {
		labels["labelStyle"] = lit("'Both'")
	}
	v.Visual.Objects = Objects{}.set("labels", labels)
	v.Visual.VisualContainerObjects = Objects{}.set("title", titleProps(title))
	v.columns = []Ref{category, value}
	return v
}
