package output

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/ansi"

	"adsdash/internal/services"
	"adsdash/internal/table"
	"adsdash/internal/views"
	"adsdash/pkg/adtypes"
)

// pixelsPerCell converts the pixel column widths of the views to terminal cells.
const pixelsPerCell = 10

// minCellWidth is the narrowest a rendered column gets.
const minCellWidth = 4

// Renderer turns views into terminal text.
type Renderer struct {
	theme *services.Theme
	plain bool
}

// NewRenderer creates a Renderer. A nil theme or plain set renders without color and
// with ASCII borders.
func NewRenderer(theme *services.Theme, plain bool) *Renderer {
	return &Renderer{theme: theme, plain: plain || theme == nil}
}

// style returns pick(theme), or an empty style when rendering plain.
func (r *Renderer) style(pick func(*services.Theme) lipgloss.Style) lipgloss.Style {
	if r.plain {
		return lipgloss.NewStyle()
	}
	return pick(r.theme)
}

func (r *Renderer) finish(s string) string {
	if r.plain {
		return ansi.Strip(s)
	}
	return s
}

func cellWidth(widths *table.ColumnWidths, i int) int {
	if widths == nil {
		return table.DefaultColumnWidth / pixelsPerCell
	}
	return max(widths.Width(i)/pixelsPerCell, minCellWidth)
}

func header(column string, sorter *table.Sorter) string {
	if sorter == nil {
		return column
	}
	return column + " " + sorter.Indicator(column)
}

// Grid renders rows as a bordered table. Cells are formatted with the dashboard column
// rules and truncated to their column width; rows for which anomalous reports true are
// highlighted.
func (r *Renderer) Grid(columns []string, rows []adtypes.Row, widths *table.ColumnWidths, sorter *table.Sorter, anomalous func(adtypes.Row) bool) string {
	headers := make([]string, len(columns))
	for i, c := range columns {
		headers[i] = ansi.Truncate(header(c, sorter), cellWidth(widths, i), "…")
	}

	tones := make([][]table.Tone, len(rows))
	flagged := make([]bool, len(rows))
	data := make([][]string, len(rows))
	for ri, row := range rows {
		data[ri] = make([]string, len(columns))
		tones[ri] = make([]table.Tone, len(columns))
		for ci, c := range columns {
			cell := table.FormatCell(c, row[c])
			data[ri][ci] = ansi.Truncate(cell.Text, cellWidth(widths, ci), "…")
			tones[ri][ci] = cell.Tone
		}
		flagged[ri] = anomalous != nil && anomalous(row)
	}

	border := lipgloss.RoundedBorder()
	if r.plain {
		border = lipgloss.ASCIIBorder()
	}

	headerStyle := r.style(func(t *services.Theme) lipgloss.Style { return t.Header })
	anomalyStyle := r.style(func(t *services.Theme) lipgloss.Style { return t.Anomaly })
	t := ltable.New().
		Border(border).
		Headers(headers...).
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			if row == ltable.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			if row < 0 || row >= len(data) {
				return base
			}
			s := r.toneStyle(tones[row][col]).Padding(0, 1)
			if flagged[row] {
				s = s.Inherit(anomalyStyle)
			}
			return s
		})
	return r.finish(t.Render())
}

func (r *Renderer) toneStyle(tone table.Tone) lipgloss.Style {
	switch tone {
	case table.ToneGood:
		return r.style(func(t *services.Theme) lipgloss.Style { return t.Good })
	case table.ToneBad:
		return r.style(func(t *services.Theme) lipgloss.Style { return t.Bad })
	case table.ToneMuted:
		return r.style(func(t *services.Theme) lipgloss.Style { return t.Muted })
	default:
		return lipgloss.NewStyle()
	}
}

func (r *Renderer) muted(s string) string {
	return r.style(func(t *services.Theme) lipgloss.Style { return t.Muted }).Render(s)
}

func (r *Renderer) errorText(s string) string {
	return r.style(func(t *services.Theme) lipgloss.Style { return t.Error }).Render(s)
}

func (r *Renderer) heading(s string) string {
	return r.style(func(t *services.Theme) lipgloss.Style { return t.Header }).Render(s)
}

// TableView renders a top-level table with its status line and active filters.
func (r *Renderer) TableView(v *views.TableView) string {
	var b strings.Builder
	if dr := v.DateRange(); !dr.IsZero() {
		b.WriteString(r.muted(fmt.Sprintf("Dates: %s … %s", orDash(dr.Start), orDash(dr.End))) + "\n")
	}
	if filters := v.Filters(); len(filters) > 0 {
		parts := make([]string, len(filters))
		for i, f := range filters {
			parts[i] = f.String()
		}
		b.WriteString(r.muted("Filters: "+strings.Join(parts, ", ")) + "\n")
	}

	if err := v.Err(); err != nil {
		b.WriteString(r.errorText("Error: "+err.Error()) + "\n")
		return r.finish(b.String())
	}
	if v.Total() == 0 {
		b.WriteString(r.muted("No data") + "\n")
		return r.finish(b.String())
	}

	b.WriteString(r.Grid(v.Columns(), v.Rows(), v.Widths(), v.Sorter(), v.RowAnomalous) + "\n")
	b.WriteString(r.muted(v.Status()) + "\n")
	return r.finish(b.String())
}

// Banner renders the anomaly summary shown above a detail view opened from an anomaly.
// Each metric is on its own line, colored by whether its movement is bad.
func (r *Renderer) Banner(banner views.AnomalyBanner) string {
	lines := make([]string, 0, len(banner.Trends)+1)
	if banner.Reason != "" {
		lines = append(lines, banner.Reason)
	}
	for _, tr := range banner.Trends {
		lines = append(lines, r.trends([]views.Trend{tr}))
	}
	if len(lines) == 0 {
		return ""
	}
	border := lipgloss.RoundedBorder()
	if r.plain {
		border = lipgloss.ASCIIBorder()
	}
	style := r.style(func(t *services.Theme) lipgloss.Style { return t.Banner }).
		Border(border).
		Padding(0, 1)
	return r.finish(style.Render(strings.Join(lines, "\n")))
}

// Detail renders a campaign detail view: the banner, then every sub-table under its label.
func (r *Renderer) Detail(v *views.DetailView) string {
	var b strings.Builder
	route := v.Route()
	b.WriteString(r.heading(route.Campaign) + "\n")
	if banner, ok := v.Banner(); ok {
		if text := r.Banner(banner); text != "" {
			b.WriteString(text + "\n")
		}
	}
	if err := v.Err(); err != nil {
		b.WriteString(r.errorText("Error: "+err.Error()) + "\n")
	}

	for _, t := range v.Tables() {
		title := t.Label
		if t.Flagged() {
			title += fmt.Sprintf(" ⚠ %d", t.AnomalyCount)
		}
		b.WriteString("\n" + r.heading(title) + "\n")
		if t.Rule != "" {
			b.WriteString(r.muted("Rule: "+t.Rule) + "\n")
		}
		if placeholder := t.Placeholder(); placeholder != "" {
			if t.Error != "" {
				b.WriteString(r.errorText(placeholder) + "\n")
			} else {
				b.WriteString(r.muted(placeholder) + "\n")
			}
			continue
		}
		b.WriteString(r.Grid(t.Columns, t.Rows(), t.Widths(), t.Sorter(), t.RowAnomalous) + "\n")
		b.WriteString(r.muted(t.Status()) + "\n")
	}
	return r.finish(b.String())
}

func (r *Renderer) trends(trends []views.Trend) string {
	parts := make([]string, len(trends))
	for i, tr := range trends {
		value := tr.Prev + " → " + tr.Curr
		if !r.plain {
			value = r.theme.Trend(tr.Bad).Render(value)
		}
		parts[i] = tr.Label + ": " + value
	}
	return strings.Join(parts, "  ")
}

func (r *Renderer) panelHeader(b *strings.Builder, title string, open bool, date string, keys []views.PanelSortKey) {
	marker := "▾"
	if !open {
		marker = "▸"
	}
	b.WriteString(r.heading(marker+" "+title) + "\n")
	if !open {
		return
	}
	b.WriteString(r.muted("Date: "+orDash(date)) + "\n")
	if len(keys) > 0 {
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k.Metric + " " + string(k.Direction)
		}
		b.WriteString(r.muted("Sort: "+strings.Join(parts, ", ")) + "\n")
	}
}

// CampaignPanel renders the campaign anomaly panel; a hidden panel renders as "".
func (r *Renderer) CampaignPanel(p *views.CampaignPanel) string {
	if !p.Visible() {
		return ""
	}
	var b strings.Builder
	r.panelHeader(&b, p.Title(), p.IsOpen(), p.DisplayDate(), p.SortKeys())
	if !p.IsOpen() {
		return r.finish(b.String())
	}
	for i, a := range p.Items() {
		b.WriteString(fmt.Sprintf("%d. %s  %s\n", i+1, r.heading(a.Campaign), r.muted(a.Reason)))
		b.WriteString("   " + r.trends(views.CampaignTrends(a)) + "\n")
	}
	return r.finish(b.String())
}

// ProductPanel renders the product anomaly panel; a hidden panel renders as "".
func (r *Renderer) ProductPanel(p *views.ProductPanel) string {
	if !p.Visible() {
		return ""
	}
	var b strings.Builder
	r.panelHeader(&b, p.Title(), p.IsOpen(), p.DisplayDate(), p.SortKeys())
	if !p.IsOpen() {
		return r.finish(b.String())
	}
	for i, a := range p.Items() {
		name := a.Title
		if name == "" {
			name = a.ItemID
		}
		b.WriteString(fmt.Sprintf("%d. %s  %s  %s\n", i+1, r.heading(name), r.muted(a.ItemID), r.muted(a.Reason)))
		b.WriteString("   " + r.trends(views.ProductTrends(a)) + "\n")
	}
	return r.finish(b.String())
}

// SEOPages renders the fetched low-CTR pages, or the view's message when there are none.
func (r *Renderer) SEOPages(v *views.SEOView) string {
	var b strings.Builder
	q := v.Query()
	b.WriteString(r.muted(fmt.Sprintf("CTR < %d%%  Dates: %s … %s  Limit: %d",
		q.CTRThreshold, orDash(q.StartDate), orDash(q.EndDate), q.RowLimit)) + "\n")
	if msg := v.Message(); msg != "" {
		b.WriteString(r.errorText(msg) + "\n")
	}

	pages := v.Pages()
	if len(pages) == 0 {
		b.WriteString(r.muted("No pages") + "\n")
		return r.finish(b.String())
	}

	columns := []string{"url", "ctr", "clicks", "impressions", "position"}
	rows := make([]adtypes.Row, len(pages))
	for i, p := range pages {
		rows[i] = adtypes.Row{"url": p.URL, "ctr": p.CTR, "clicks": optional(p.Clicks),
			"impressions": optional(p.Impressions), "position": optional(p.Position)}
	}
	widths := table.NewColumnWidths(len(columns))
	widths.Set(0, 600)
	b.WriteString(r.Grid(columns, rows, widths, nil, nil) + "\n")
	b.WriteString(r.muted(strconv.Itoa(len(pages))+" pages") + "\n")
	return r.finish(b.String())
}

// Transcript renders a conversation. Agent messages go through markdown when md is set.
func (r *Renderer) Transcript(conv adtypes.Conversation, md *services.MarkdownService) string {
	var b strings.Builder
	b.WriteString(r.heading(conv.Title) + "\n\n")
	for _, m := range conv.Messages {
		b.WriteString(r.Message(m, md))
	}
	return r.finish(b.String())
}

// Message renders a single chat message with its role label.
func (r *Renderer) Message(m adtypes.Message, md *services.MarkdownService) string {
	label := "You"
	style := r.style(func(t *services.Theme) lipgloss.Style { return t.User })
	if m.Role == adtypes.RoleAgent {
		label = "Agent"
		style = r.style(func(t *services.Theme) lipgloss.Style { return t.Agent })
	}

	content := m.Content
	if m.Role == adtypes.RoleAgent && md != nil && !r.plain {
		if rendered, err := md.Render(content); err == nil && rendered != "" {
			content = strings.TrimRight(rendered, "\n")
		}
	}
	return r.finish(style.Render(label+":") + "\n" + content + "\n\n")
}

// Conversations renders the conversation list, marking the current one.
func (r *Renderer) Conversations(list []adtypes.Conversation, currentID int64) string {
	items := make([]string, len(list))
	for i, c := range list {
		mark := "  "
		if c.ID == currentID {
			mark = "* "
		}
		items[i] = fmt.Sprintf("%s%s  %s", mark, c.Title, r.muted(strconv.FormatInt(c.ID, 10)))
	}
	return r.finish(r.listTheme().CreateList(items...).String() + "\n")
}

// Experts renders the expert checklist.
func (r *Renderer) Experts(e *services.Experts) string {
	items := make([]string, len(services.AllExperts))
	for i, ex := range services.AllExperts {
		box := "[ ]"
		if e.IsSelected(ex.ID) {
			box = "[x]"
		}
		items[i] = fmt.Sprintf("%s %s %s", box, ex.Label, r.muted("("+ex.ID+")"))
	}
	return r.finish(r.listTheme().CreateList(items...).String() + "\n")
}

// Diff renders a rule diff with removed lines in the bad color and added in the good.
func (r *Renderer) Diff(lines []services.DiffLine) string {
	if len(lines) == 0 {
		return r.finish(r.muted("No saved rule; the default prompt is in use.") + "\n")
	}
	var b strings.Builder
	for _, l := range lines {
		switch l.Kind {
		case services.DiffRemoved:
			b.WriteString(r.style(func(t *services.Theme) lipgloss.Style { return t.Bad }).Render("- "+l.Text) + "\n")
		case services.DiffAdded:
			b.WriteString(r.style(func(t *services.Theme) lipgloss.Style { return t.Good }).Render("+ "+l.Text) + "\n")
		default:
			b.WriteString("  " + l.Text + "\n")
		}
	}
	return r.finish(b.String())
}

func (r *Renderer) listTheme() *services.Theme {
	if r.plain || r.theme == nil {
		return plainListTheme
	}
	return r.theme
}

var plainListTheme = &services.Theme{Name: "plain"}

func optional(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
