package core

// Static configuration tables for the record types. The lists mirror what the
// practice dashboard offers in its transaction form; the palette is used for
// category charts.

var IncomeCategories = []string{
	"Visite Specialistiche",
	"Interventi Chirurgici",
	"Esami Diagnostici",
	"Consulenze",
	"Rimborsi Assicurativi",
	"Certificazioni Mediche",
	"Altro",
}

var ExpenseCategories = []string{
	"Affitto Studio",
	"Materiale Sanitario e Monouso",
	"Stipendi Personale",
	"Utenze (Luce, Gas, Web)",
	"Assicurazioni Professionali",
	"Manutenzione Apparecchiature",
	"Marketing e Sito Web",
	"Software Gestionale",
	"Formazione ECM",
	"Tasse e Imposte",
	"Altro",
}

var ChartPalette = []string{
	"#3b82f6", "#10b981", "#f59e0b", "#ef4444", "#8b5cf6",
	"#ec4899", "#06b6d4", "#f97316", "#14b8a6", "#6366f1",
}

// FallbackCategory returns the category recorded when the user leaves the
// field empty. Both lists close with the same catch-all entry.
func FallbackCategory(t TransactionType) string {
	if t == Income {
		return IncomeCategories[len(IncomeCategories)-1]
	}
	return ExpenseCategories[len(ExpenseCategories)-1]
}
