package filter

import (
	"golang.org/x/text/language"

	"github.com/vanderheijden86/appdrawer/pkg/metrics"
	"github.com/vanderheijden86/appdrawer/pkg/model"
)

// Pipeline applies the filter and then the sort.
type Pipeline struct {
	sorter *Sorter
}

// NewPipeline creates a pipeline sorting with the given locale.
func NewPipeline(tag language.Tag) *Pipeline {
	return &Pipeline{sorter: NewSorter(tag)}
}

// Sorter exposes the pipeline's sorter so search ranks with the same keys.
func (p *Pipeline) Sorter() *Sorter {
	return p.sorter
}

// Run returns the sorted display list and the unsorted filtered list.
func (p *Pipeline) Run(raw []model.AppEntry, opts Options, labels LabelFunc) (sorted, filtered []model.AppEntry) {
	defer metrics.Timer(metrics.FilterApply)()
	filtered = Apply(raw, opts)
	sorted = p.sorter.Sort(filtered, labels)
	return sorted, filtered
}
