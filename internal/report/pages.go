package report

import (
	"fabdrop/internal/semantic"
)

// Palette colours.
const (
	Primary = "#1E3A5F"
	Success = "#107C10"
	Warning = "#D83B01"
	Danger  = "#D13438"
	Neutral = "#605E5C"
	Finance = "#8764B8"
	White   = "#FFFFFF"

	pageBackground = "#FAFAFA"
)

// Page geometry: 16:9 canvas, 20px margins, 12px gaps inside a group and
// 24px between sections.
const (
	PageWidth  = 1280
	PageHeight = 720

	margin     = 20
	gap        = 12
	sectionGap = 24
)

// Page is one report page in display order.
type Page struct {
	Name        string
	DisplayName string
	Visuals     []Visual
}

// measureRef references a measure on the measure table.
func measureRef(name string) Ref { return Ref{Table: semantic.TableSpend, Name: name} }

var (
	riskColumns = []Ref{
		Col(semantic.TableRisk, "publisher"),
		Col(semantic.TableRisk, "sspa"),
		Col(semantic.TableRisk, "po"),
		Col(semantic.TableRisk, "finance"),
		Col(semantic.TableRisk, "legal"),
		Col(semantic.TableRisk, "inventory"),
	}

	riskCategories = []struct {
		measure, label, color string
	}{
		{"SSPA Risks", "SSPA", Danger},
		{"PO Risks", "PO", Warning},
		{"Finance Risks", "Finance", Finance},
		{"Legal Risks", "Legal", Warning},
		{"Inventory Risks", "Inventory", Danger},
	}
)

// DefaultPages returns the overview, publishers, risks and titles pages.
func DefaultPages() []Page {
	return []Page{overviewPage(), publishersPage(), risksPage(), titlesPage()}
}

func overviewPage() Page {
	var vs []Visual

	// Hero spend cards, then secondary KPIs to their right.
	const heroY, heroW, heroH = margin, 180, 110
	for i, c := range []struct{ measure, title string }{
		{"Total Company Spend", "Company Spend"},
		{"Total MSD Spend", "MSD Spend"},
		{"Total TI&M Spend", "TI&M Spend"},
	} {
		vs = append(vs, StyledCard(Rect{margin + i*(heroW+gap), heroY, heroW, heroH}, measureRef(c.measure), c.title, Primary, White))
	}
	const secW, secH = 130, 110
	secX := margin + 3*(heroW+gap) + sectionGap
	for i, c := range []struct{ measure, title string }{
		{"SNOW Tickets MTD", "SNOW Tickets"},
		{"ICM Tickets MTD", "ICM Tickets"},
		{"Managed Titles", "Titles"},
		{"Managed Publishers", "Publishers"},
	} {
		vs = append(vs, Card(Rect{secX + i*(secW+gap), heroY, secW, secH}, measureRef(c.measure), c.title))
	}

	// Savings donut, risk summary and renewal countdown.
	row2Y := heroY + heroH + sectionGap
	const row2H = 240
	vs = append(vs, Chart(DonutChart, Rect{margin, row2Y, 320, row2H},
		Col(semantic.TablePublisher, "name"), Col(semantic.TablePublisher, "savingsAmount"), Sum,
		"Potential Savings by Publisher"))

	riskX := margin + 320 + sectionGap
	const riskW, riskH = 85, 70
	for i, c := range riskCategories {
		vs = append(vs, StyledCard(Rect{riskX + i*(riskW+8), row2Y, riskW, riskH}, measureRef(c.measure), c.label, c.color, White))
	}
	vs = append(vs,
		StyledCard(Rect{riskX, row2Y + riskH + gap, 230, 85}, measureRef("Total Risks"), "Total Risks Tracked", Neutral, White),
		StyledCard(Rect{riskX + 240, row2Y + riskH + gap, 230, 85}, measureRef("Total Savings"), "Potential Savings", Success, White),
	)

	const renewalX, renewalW = 1020, 240
	vs = append(vs,
		StyledCard(Rect{renewalX, row2Y, renewalW, 70}, measureRef("Days Until Next Renewal"), "Days to Next Renewal", Warning, White),
		Card(Rect{renewalX, row2Y + 75, renewalW, 65}, measureRef("Next Renewal Publisher"), "Next Publisher"),
		Card(Rect{renewalX, row2Y + 145, renewalW, 65}, measureRef("Next Renewal Date"), "Renewal Date"),
		StyledCard(Rect{renewalX, row2Y + 215, 115, 65}, measureRef("Renewals This Quarter"), "This Quarter", Success, White),
		StyledCard(Rect{renewalX + 125, row2Y + 215, 115, 65}, measureRef("Past Due Renewals"), "Past Due", Danger, White),
	)

	// Detail row.
	row3Y := row2Y + row2H + sectionGap
	const row3H = 270
	vs = append(vs,
		Chart(BarChart, Rect{margin, row3Y, 380, row3H},
			Col(semantic.TableSpend, "publisher"), Col(semantic.TableSpend, "companySpend"), Sum,
			"Annual Spend by Publisher"),
		Table(Rect{margin + 380 + sectionGap, row3Y, 460, row3H}, "Risk Details by Publisher", riskColumns...),
		Chart(DonutChart, Rect{margin + 380 + sectionGap + 460 + sectionGap, row3Y, 230, row3H},
			Col(semantic.TablePublisher, "status"), Col(semantic.TablePublisher, "name"), DistinctCount,
			"Compliance Status"),
	)

	return Page{Name: "overview", DisplayName: "SLS MBR Overview", Visuals: vs}
}

func publishersPage() Page {
	var vs []Visual

	const slicerW, slicerH = 150, 50
	for i, c := range []struct{ column, title string }{
		{"type", "Type"},
		{"status", "Status"},
		{"contact", "Contact"},
	} {
		vs = append(vs, Slicer(Rect{margin + i*(slicerW+gap), margin, slicerW, slicerH},
			Col(semantic.TablePublisher, c.column), c.title))
	}

	tableY := margin + slicerH + sectionGap
	const tableW, tableH = 860, 340
	vs = append(vs, Table(Rect{margin, tableY, tableW, tableH}, "Publishers & Renewal Details",
		Col(semantic.TablePublisher, "name"),
		Col(semantic.TablePublisher, "title"),
		Col(semantic.TablePublisher, "type"),
		Col(semantic.TablePublisher, "contact"),
		Col(semantic.TablePublisher, "renewalDate"),
		Col(semantic.TablePublisher, "status"),
		Col(semantic.TablePublisher, "savingsAmount"),
	))

	cardX := margin + tableW + sectionGap
	const cardW, cardH = 180, 85
	for i, c := range []struct{ measure, title, color string }{
		{"Days Until Next Renewal", "Days to Renewal", Warning},
		{"Renewals This Quarter", "This Quarter", Success},
		{"Renewals This Year", "This Year", Success},
		{"Past Due Renewals", "Past Due", Danger},
	} {
		vs = append(vs, StyledCard(Rect{cardX, tableY + i*(cardH+gap), cardW, cardH}, measureRef(c.measure), c.title, c.color, White))
	}

	row3Y := tableY + tableH + sectionGap
	chartH := PageHeight - row3Y - margin
	chartW := (PageWidth - 2*margin - sectionGap) / 2
	publisher := Col(semantic.TableSpend, "publisher")
	vs = append(vs,
		Chart(BarChart, Rect{margin, row3Y, chartW, chartH},
			publisher, Col(semantic.TableSpend, "companySpend"), Sum, "Company Spend by Publisher"),
		Chart(BarChart, Rect{margin + chartW + sectionGap, row3Y, chartW, chartH},
			publisher, Col(semantic.TableSpend, "msdSpend"), Sum, "MSD Spend by Publisher"),
	)

	return Page{Name: "publishers", DisplayName: "Publishers & Renewals", Visuals: vs}
}

func risksPage() Page {
	const cardY, cardW, cardH = margin, 120, 70
	vs := []Visual{
		StyledCard(Rect{margin, cardY, 150, cardH}, measureRef("Total Risks"), "Total Risks", Neutral, White),
	}
	for i, c := range riskCategories {
		vs = append(vs, StyledCard(Rect{margin + 150 + sectionGap + i*(cardW+gap), cardY, cardW, cardH},
			measureRef(c.measure), c.label, c.color, White))
	}

	tableY := cardY + cardH + sectionGap
	cols := append(append([]Ref{}, riskColumns...), Col(semantic.TableRisk, "details"))
	vs = append(vs, Table(Rect{margin, tableY, PageWidth - 2*margin, PageHeight - tableY - margin},
		"Risk Details by Publisher", cols...))

	return Page{Name: "risks", DisplayName: "Risk Details", Visuals: vs}
}

func titlesPage() Page {
	const cardY, cardW, cardH = margin, 160, 70
	vs := []Visual{
		StyledCard(Rect{margin, cardY, cardW, cardH}, measureRef("Managed Titles"), "Managed Titles", Primary, White),
		StyledCard(Rect{margin + cardW + gap, cardY, cardW, cardH}, measureRef("Managed Publishers"), "Publishers", Primary, White),
		Slicer(Rect{margin + 2*(cardW+gap) + sectionGap, cardY, 200, cardH},
			Col(semantic.TableTitle, "publisher"), "Filter by Publisher"),
	}

	tableY := cardY + cardH + sectionGap
	vs = append(vs, Table(Rect{margin, tableY, PageWidth - 2*margin, PageHeight - tableY - margin},
		"Managed Software Titles",
		Col(semantic.TableTitle, "title"),
		Col(semantic.TableTitle, "publisher"),
		Col(semantic.TableTitle, "category"),
		Col(semantic.TableTitle, "notes"),
	))

	return Page{Name: "titles", DisplayName: "Managed Titles", Visuals: vs}
}
