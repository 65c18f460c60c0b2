package dom

// Observation is the JSON-serializable result of one reduction, consumed by
// the environment layer.
type Observation struct {
	HTML      string         `json:"html"`
	Clickable []string       `json:"clickable_elements"`
	Hoverable []string       `json:"hoverable_elements"`
	Inputs    []InputRecord  `json:"input_elements"`
	Selects   []SelectRecord `json:"select_elements"`
}

// InputRecord summarizes one identifier-bearing editable element.
type InputRecord struct {
	ID        string `json:"id"`
	Disabled  bool   `json:"disabled"`
	Type      string `json:"type"`
	Value     string `json:"value"`
	CanEdit   bool   `json:"canEdit"`
	IsFocused bool   `json:"isFocused"`
}

// SelectRecord summarizes one identifier-bearing select element.
type SelectRecord struct {
	ID             string   `json:"id"`
	Value          string   `json:"value"`
	SelectedIndex  int      `json:"selectedIndex"`
	Multiple       bool     `json:"multiple"`
	SelectedValues []string `json:"selectedValues"`
}

// Stamp is one identifier write-back owed to the live page, addressed by the
// capture ordinal of the source element.
type Stamp struct {
	Ordinal   int    `json:"ord"`
	ID        string `json:"id,omitempty"`
	Clickable bool   `json:"clickable,omitempty"`
	Hoverable bool   `json:"hoverable,omitempty"`
}

// aggregate serializes the reduced tree and collects the identifier lists
// and form-state records in document order.
func aggregate(root *OutputNode) *Observation {
	obs := &Observation{
		Clickable: []string{},
		Hoverable: []string{},
		Inputs:    []InputRecord{},
		Selects:   []SelectRecord{},
	}
	if root == nil {
		return obs
	}
	obs.HTML = Serialize(root)
	root.Walk(func(n *OutputNode) {
		if n.SemanticID == "" {
			return
		}
		if n.Clickable {
			obs.Clickable = append(obs.Clickable, n.SemanticID)
		}
		if n.Hoverable {
			obs.Hoverable = append(obs.Hoverable, n.SemanticID)
		}
		if n.Input != nil {
			obs.Inputs = append(obs.Inputs, InputRecord{
				ID:        n.SemanticID,
				Disabled:  false,
				Type:      n.Input.Type,
				Value:     n.Input.Value,
				CanEdit:   n.Input.CanEdit,
				IsFocused: n.Input.Focused,
			})
		}
		if n.Select != nil {
			values := n.Select.SelectedValues
			if values == nil {
				values = []string{}
			}
			obs.Selects = append(obs.Selects, SelectRecord{
				ID:             n.SemanticID,
				Value:          n.Select.Value,
				SelectedIndex:  n.Select.SelectedIndex,
				Multiple:       n.Select.Multiple,
				SelectedValues: values,
			})
		}
	})
	return obs
}
