package parser

import (
	"regexp"

	"github.com/dvloznov/finchat/internal/domain"
)

// Income keywords are checked first: they are more specific than expense
// words like "conta" that show up in both contexts.
var incomeKeywords = []string{
	"recebi", "receita", "entrada", "salário", "salario", "freelance",
	"investimento", "rendimento", "ganhei", "reembolso",
}

var expenseKeywords = []string{
	"gastei", "gasto", "gastos", "paguei", "pagar", "comprei", "compra",
	"despesa", "conta",
}

// CategorySynonyms is one row of the synonym table: the canonical label
// and the words that point at it.
type CategorySynonyms struct {
	Canonical string
	Synonyms  []string
}

// categoryTable is scanned in order; the first synonym hit wins.
var categoryTable = []CategorySynonyms{
	{"mercado", []string{"mercado", "compras", "supermercado", "feira", "hortifruti"}},
	{"alimentação", []string{"alimentação", "alimentacao", "restaurante", "lanche", "almoço", "almoco", "jantar", "comida", "ifood", "padaria", "café"}},
	{"transporte", []string{"transporte", "uber", "gasolina", "combustível", "combustivel", "ônibus", "onibus", "metrô", "metro", "táxi", "taxi", "estacionamento", "pedágio"}},
	{"moradia", []string{"moradia", "aluguel", "condomínio", "condominio", "luz", "água", "agua", "energia", "internet", "gás"}},
	{"saúde", []string{"saúde", "saude", "farmácia", "farmacia", "remédio", "remedio", "médico", "medico", "dentista", "consulta", "academia"}},
	{"lazer", []string{"lazer", "cinema", "show", "viagem", "bar", "festa", "netflix", "spotify", "jogo"}},
	{"educação", []string{"educação", "educacao", "curso", "livro", "escola", "faculdade", "mensalidade"}},
	{"vestuário", []string{"vestuário", "vestuario", "roupa", "roupas", "sapato", "tênis"}},
	{"salário", []string{"salário", "salario", "holerite"}},
	{"freelance", []string{"freelance", "freela"}},
	{"investimentos", []string{"investimentos", "investimento", "dividendos", "rendimento", "juros"}},
}

// CategoryTable returns a copy of the synonym table in scan order.
func CategoryTable() []CategorySynonyms {
	out := make([]CategorySynonyms, len(categoryTable))
	copy(out, categoryTable)
	return out
}

// DefaultCategories lists the categories seeded into an empty store. Names
// line up with the canonical labels so the resolver finds them directly.
func DefaultCategories() []domain.Category {
	return []domain.Category{
		{Name: "Mercado", Type: domain.TransactionTypeExpense, Icon: "🛒"},
		{Name: "Alimentação", Type: domain.TransactionTypeExpense, Icon: "🍽️"},
		{Name: "Transporte", Type: domain.TransactionTypeExpense, Icon: "🚌"},
		{Name: "Moradia", Type: domain.TransactionTypeExpense, Icon: "🏠"},
		{Name: "Saúde", Type: domain.TransactionTypeExpense, Icon: "💊"},
		{Name: "Lazer", Type: domain.TransactionTypeExpense, Icon: "🎬"},
		{Name: "Educação", Type: domain.TransactionTypeExpense, Icon: "📚"},
		{Name: "Vestuário", Type: domain.TransactionTypeExpense, Icon: "👕"},
		{Name: "Outros", Type: domain.TransactionTypeExpense, Icon: "📦"},
		{Name: "Salário", Type: domain.TransactionTypeIncome, Icon: "💼"},
		{Name: "Freelance", Type: domain.TransactionTypeIncome, Icon: "💻"},
		{Name: "Investimentos", Type: domain.TransactionTypeIncome, Icon: "📈"},
		{Name: "Outras receitas", Type: domain.TransactionTypeIncome, Icon: "💰"},
	}
}

// keyword pairs a literal word with its compiled whole-word matcher.
type keyword struct {
	word string
	re   *regexp.Regexp
}

type typeRule struct {
	typ      domain.TransactionType
	keywords []keyword
}

var (
	typeRules = []typeRule{
		{domain.TransactionTypeIncome, compileKeywords(incomeKeywords)},
		{domain.TransactionTypeExpense, compileKeywords(expenseKeywords)},
	}
	categoryMatchers = compileCategoryTable(categoryTable)
)

type categoryMatcher struct {
	canonical string
	synonyms  []keyword
}

func compileKeywords(words []string) []keyword {
	out := make([]keyword, 0, len(words))
	for _, w := range words {
		out = append(out, keyword{word: w, re: wordPattern(w)})
	}
	return out
}

func compileCategoryTable(table []CategorySynonyms) []categoryMatcher {
	out := make([]categoryMatcher, 0, len(table))
	for _, row := range table {
		out = append(out, categoryMatcher{canonical: row.Canonical, synonyms: compileKeywords(row.Synonyms)})
	}
	return out
}

// wordPattern matches w case-insensitively as a whole word. Go's \b only
// knows ASCII, so boundaries are spelled out with Unicode classes.
func wordPattern(w string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(` + regexp.QuoteMeta(w) + `)(?:$|[^\p{L}\p{N}])`)
}

// find returns the byte span of the keyword itself, or ok=false.
func (k keyword) find(text string) (start, end int, ok bool) {
	m := k.re.FindStringSubmatchIndex(text)
	if m == nil {
		return 0, 0, false
	}
	return m[2], m[3], true
}

// removeAll cuts every whole-word occurrence of k out of text.
func (k keyword) removeAll(text string) string {
	for i := 0; i < 32; i++ {
		start, end, ok := k.find(text)
		if !ok {
			break
		}
		text = text[:start] + " " + text[end:]
	}
	return text
}
