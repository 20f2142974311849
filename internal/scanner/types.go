package scanner

import "time"

// ScanTarget is one entry of the scan catalog
type ScanTarget struct {
	Path          string `yaml:"path" json:"path"`
	Category      string `yaml:"category" json:"category"`
	AdminRequired bool   `yaml:"admin_required,omitempty" json:"admin_required,omitempty"`
	// ExpandOneLevel reports each immediate child of Path as its own item
	// instead of Path as a whole.
	ExpandOneLevel bool `yaml:"expand_one_level,omitempty" json:"expand_one_level,omitempty"`
}

// DiscoveredItem is a file or directory found during a scan. Its size is
// fixed at discovery; only Selected changes afterwards.
type DiscoveredItem struct {
	Path          string    `json:"path" yaml:"path"`
	Name          string    `json:"name" yaml:"name"`
	Size          int64     `json:"size" yaml:"size"`
	Category      string    `json:"category" yaml:"category"`
	ModTime       time.Time `json:"mod_time" yaml:"mod_time"`
	AdminRequired bool      `json:"admin_required,omitempty" yaml:"admin_required,omitempty"`
	Selected      bool      `json:"selected" yaml:"selected"`
}

// CategoryResult groups the items of one category
type CategoryResult struct {
	Category  string           `json:"category" yaml:"category"`
	Items     []DiscoveredItem `json:"items" yaml:"items"`
	TotalSize int64            `json:"total_size" yaml:"total_size"`
}

// SelectedItems returns the selected items of the category in order
func (c *CategoryResult) SelectedItems() []DiscoveredItem {
	var out []DiscoveredItem
	for _, item := range c.Items {
		if item.Selected {
			out = append(out, item)
		}
	}
	return out
}

// GroupByCategory groups items by category, keeping the order in which
// categories first appear and the order of items inside each category.
func GroupByCategory(items []DiscoveredItem) []CategoryResult {
	var results []CategoryResult
	index := make(map[string]int)

	for _, item := range items {
		i, ok := index[item.Category]
		if !ok {
			i = len(results)
			index[item.Category] = i
			results = append(results, CategoryResult{Category: item.Category})
		}
		results[i].Items = append(results[i].Items, item)
		results[i].TotalSize += item.Size
	}

	return results
}
