package catalog

import (
	"fmt"
	"strings"
)

// Category classifies a site template.
type Category string

const (
	CategoryEcommerce     Category = "E-commerce"
	CategoryLandingPage   Category = "Landing Page"
	CategoryBlog          Category = "Blog"
	CategoryInstitutional Category = "Institucional"
)

// categoryCycle is the fixed rotation applied over template ids.
var categoryCycle = []Category{
	CategoryEcommerce,
	CategoryLandingPage,
	CategoryBlog,
	CategoryInstitutional,
}

// Template is an immutable catalog entry.
type Template struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Category    Category `json:"category"`
	Features    []string `json:"features"`
	Delivery    string   `json:"delivery"`
}

const (
	// TemplateCount is the size of the generated catalog.
	TemplateCount = 40

	basePrice      = 100.00
	priceIncrement = 50.00

	catalogPreview  = 8
	descriptionTrim = 48

	deliveryEstimate = "3-5 dias úteis"
)

var defaultFeatures = []string{"Design Responsivo", "Otimizado SEO", "Suporte 30 dias"}

var templates = generate()

// generate builds the catalog as a pure function of the template id.
func generate() []Template {
	items := make([]Template, 0, TemplateCount)
	for id := 1; id <= TemplateCount; id++ {
		items = append(items, Template{
			ID:          id,
			Name:        fmt.Sprintf("Template %d", id),
			Description: fmt.Sprintf("Descrição detalhada do template %d com design moderno e responsivo", id),
			Price:       basePrice + float64(id-1)*priceIncrement,
			Category:    categoryCycle[(id-1)%len(categoryCycle)],
			Features:    defaultFeatures,
			Delivery:    deliveryEstimate,
		})
	}
	return items
}

// Templates returns the full ordered catalog.
func Templates() []Template {
	out := make([]Template, len(templates))
	copy(out, templates)
	return out
}

// ByID returns the template with the given id, or false when out of range.
func ByID(id int) (Template, bool) {
	if id < 1 || id > len(templates) {
		return Template{}, false
	}
	return templates[id-1], true
}

// RenderCatalog formats the catalog preview shown in chat: the first
// templates with id, price, delivery, truncated description, category and
// the leading features. Full detail only appears after selection.
func RenderCatalog() string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎨 *CATÁLOGO DE TEMPLATES* - %d modelos disponíveis\n\n", len(templates))

	for _, t := range templates[:catalogPreview] {
		fmt.Fprintf(&b, "*%d.* %s\n", t.ID, t.Name)
		fmt.Fprintf(&b, "💵 R$ %.2f | 📦 %s\n", t.Price, t.Delivery)
		fmt.Fprintf(&b, "📝 %s\n", truncate(t.Description, descriptionTrim))
		fmt.Fprintf(&b, "🏷️ %s | ⭐ %s\n\n", t.Category, strings.Join(t.Features[:2], ", "))
	}

	b.WriteString("📋 *INSTRUÇÕES:*\n")
	b.WriteString("Digite o *NÚMERO* do template que gostou\n")
	b.WriteString("Ou digite *voltar* para o menu principal")
	return b.String()
}

// RenderDetails formats the full template detail plus the follow-up options.
func RenderDetails(t Template) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎯 *%s - DETALHES*\n\n", t.Name)
	fmt.Fprintf(&b, "📝 %s\n\n", t.Description)
	fmt.Fprintf(&b, "💵 *Investimento:* R$ %.2f\n", t.Price)
	fmt.Fprintf(&b, "📦 *Entrega:* %s\n", t.Delivery)
	fmt.Fprintf(&b, "🏷️ *Categoria:* %s\n\n", t.Category)
	b.WriteString("⭐ *INCLUI:*\n")
	for _, f := range t.Features {
		fmt.Fprintf(&b, "✅ %s\n", f)
	}
	b.WriteString("\n💎 *PRÓXIMOS PASSOS:*\n")
	b.WriteString("1️⃣ - Pagar agora e iniciar projeto\n")
	b.WriteString("2️⃣ - Agendar atendimento para tirar dúvidas\n")
	b.WriteString("3️⃣ - Ver mais templates\n")
	b.WriteString("4️⃣ - Voltar ao menu principal")
	return b.String()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "..."
}
