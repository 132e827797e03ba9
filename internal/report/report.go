// Package report renders the final markdown briefing from the workflow's
// structured classification result.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"mediabrief/internal/services"
	"mediabrief/internal/services/dify"
)

const briefingTemplate = `# {{.Title}}

**报告日期：** {{.Date}}（统计区间：{{.PreviousDate}} 至 {{.Date}}）

**境内信息：** {{.InsideTotal}} 条　**境外信息：** {{.OutsideTotal}} 条

## 境内舆情
{{range .Domestic}}
### {{.Title}}

{{.Content}}
{{range .Links}}- {{.}}
{{end}}{{else}}
（无境内条目）
{{end}}
## 境外舆情
{{range .Foreign}}
### {{.Title}}

{{.Content}}
{{range .Links}}- {{.}}
{{end}}{{else}}
（无境外条目）
{{end}}`

var tmpl = template.Must(template.New("briefing").Parse(briefingTemplate))

// Data is the rendering context for one briefing.
type Data struct {
	Title        string
	Date         string
	PreviousDate string
	InsideTotal  int
	OutsideTotal int
	Domestic     []dify.Source
	Foreign      []dify.Source
}

// Filename returns the dated briefing filename for a given day.
func Filename(day time.Time) string {
	return fmt.Sprintf("南海舆情日报_%s.md", day.Format("2006-01-02"))
}

// Build assembles the rendering context. Inside/outside totals come from the
// language column of the retained rows, not from the source counts, so they
// reflect the full batch rather than the summarized clusters.
func Build(result *dify.StructuredResult, insideTotal, outsideTotal int, day time.Time) Data {
	return Data{
		Title:        "南海舆情日报",
		Date:         day.Format("2006年1月2日"),
		PreviousDate: day.AddDate(0, 0, -1).Format("2006年1月2日"),
		InsideTotal:  insideTotal,
		OutsideTotal: outsideTotal,
		Domestic:     result.DomesticSources,
		Foreign:      result.ForeignSources,
	}
}

// Render writes the briefing to path. An empty classification on both sides
// is a stage failure; a briefing with nothing to report is never produced.
func Render(path string, data Data) error {
	if len(data.Domestic) == 0 && len(data.Foreign) == 0 {
		return services.Wrap(services.ErrValidation, "report", "render", "no classified sources to report", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "report", "render", "create report directory", err)
	}

	var builder strings.Builder
	if err := tmpl.Execute(&builder, data); err != nil {
		return services.Wrap(services.ErrTransient, "report", "render", "execute template", err)
	}
	if err := os.WriteFile(path, []byte(builder.String()), 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "report", "render", "write report file", err)
	}
	return nil
}

// CountByLanguage splits row languages into inside (language mentions
// Chinese) and outside counts.
func CountByLanguage(languages []string) (inside, outside int) {
	for _, language := range languages {
		language = strings.TrimSpace(language)
		if language == "" {
			continue
		}
		if strings.Contains(language, "Chinese") {
			inside++
			continue
		}
		outside++
	}
	return inside, outside
}
