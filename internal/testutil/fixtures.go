package testutil

// SampleDataJS is a small data.js holding every dataset section.
const SampleDataJS = `// Software licensing dataset
// Generated by fabdrop import

const defaultRawData = {
    publishers: [
        { id: 1, name: 'ServiceNow', title: 'UU Platform', type: 'SaaS', contact: 'Kathren', renewalDate: '2031-06-29', status: 'Active', savingsAmount: 3723770.88, savingsType: 'Cost Reduction' },
        { id: 2, name: 'Adobe', title: 'Creative Cloud', type: 'Hybrid', contact: 'Kathren', renewalDate: '2026-06-30', status: 'Pending', savingsAmount: 0, savingsType: 'Cost Avoidance' },
        { id: 3, name: 'Anthropic', title: 'Claude Code', type: 'SaaS', contact: 'Neva', renewalDate: '', status: 'In Review', savingsAmount: 0, savingsType: '' },
    ],
    spendData: [
        { publisher: 'ServiceNow', companySpend: 87113708, msdSpend: 4954050, tiamSpend: 0, fiscalYear: 'FY26', notes: '' },
        { publisher: 'Adobe', companySpend: 13644684.7, msdSpend: 111765, tiamSpend: 26000, fiscalYear: 'FY26', notes: 'Renewal, pending review' },
    ],
    riskData: [
        { publisher: 'Anthropic', sspa: '', po: 'COO PO on Hold', finance: '', legal: '', inventory: '', details: 'PO: COO PO on Hold' },
    ],
    managedTitles: [
        { title: 'UU Platform', publisher: 'ServiceNow', category: 'Other', licenseCount: 0, notes: 'active' },
        { title: 'Creative Cloud', publisher: 'Adobe', category: 'Other', licenseCount: 0, notes: 'active' },
        { title: 'Claude Code', publisher: 'Anthropic', category: 'Other', licenseCount: 0, notes: 'active' },
    ],
    datasetVersion: 'FY26_CSV_IMPORT_2026-02-24',
    externalKpis: [
        { name: 'SNOW Tickets MTD', value: 315, unit: 'tickets', source: 'ServiceNow', lastUpdated: '2026-02-24' },
        { name: 'ICM Tickets MTD', value: 135, unit: 'tickets', source: 'ICM', lastUpdated: '2026-02-24' },
    ]
};

if (typeof module !== 'undefined') { module.exports = { defaultRawData }; }
`

// SampleTrackerCSV is a flat tracker export with two publishers.
const SampleTrackerCSV = `Publisher,Title,On Prem vs. SaaS,SLS FTE Point of Contact,License / Renewal / Subscription End Date,FY26 Invoice Status,FY26 Savings,Savings Type,FY26 Company Annual Spend,FY26 MSD Annual Spend,FY26 TI&M Annual Spend,FY26 Company Annual Spend Notes,Risks : SSPA,Risks : PO,Risks : Finance,Risks : Legal,Risks : Inventory
Adobe,Creative Cloud,Hybrid,Kathren,6/30/2026,Completed,"$1,000.00",Cost Avoidance,"$13,644,684.70","$111,765.00","$26,000.00",,,,,,
Figma,• Figma & FigJam,SaaS,Neva,7/31/2026 pending,TBD,-,,"$13,500,000.00",$-,"$1,511.00",,SSPA due 1/13/2026,,,,
`
