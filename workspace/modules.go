package workspace

// ModuleID names a feature module. The set is closed; module data is only
// reachable through the descriptor table below.
type ModuleID string

const (
	ModuleDiscussion  ModuleID = "discussion"
	ModuleMarketplace ModuleID = "marketplace"
	ModuleMap         ModuleID = "map"
)

// ModuleDescriptor describes one module's sub-document.
type ModuleDescriptor struct {
	ID    ModuleID
	Title string

	present func(*Data) bool
	ensure  func(*Data) bool
}

var moduleTable = []ModuleDescriptor{
	{
		ID:      ModuleDiscussion,
		Title:   "Discussion",
		present: func(d *Data) bool { return d.Discussion != nil },
		ensure: func(d *Data) bool {
			if d.Discussion == nil {
				d.Discussion = &DiscussionData{}
				d.Discussion.fill()
				return true
			}
			return d.Discussion.fill()
		},
	},
	{
		ID:      ModuleMarketplace,
		Title:   "Marketplace",
		present: func(d *Data) bool { return d.Marketplace != nil },
		ensure: func(d *Data) bool {
			if d.Marketplace == nil {
				d.Marketplace = &MarketplaceData{}
				d.Marketplace.fill()
				return true
			}
			return d.Marketplace.fill()
		},
	},
	{
		ID:      ModuleMap,
		Title:   "Map",
		present: func(d *Data) bool { return d.Map != nil },
		ensure: func(d *Data) bool {
			if d.Map == nil {
				d.Map = &MapData{}
				d.Map.fill()
				return true
			}
			return d.Map.fill()
		},
	},
}

// Modules returns the descriptors of every known module in a fixed order.
func Modules() []ModuleDescriptor {
	out := make([]ModuleDescriptor, len(moduleTable))
	copy(out, moduleTable)
	return out
}

// LookupModule returns the descriptor for id.
func LookupModule(id ModuleID) (ModuleDescriptor, bool) {
	for _, m := range moduleTable {
		if m.ID == id {
			return m, true
		}
	}
	return ModuleDescriptor{}, false
}

// Present reports whether doc already holds this module's sub-document.
func (m ModuleDescriptor) Present(doc *Document) bool { return m.present(&doc.Data) }

// EnsureModule lazily initializes the sub-document for id. It reports
// whether anything was created; a second call is a no-op and leaves
// LastModified alone.
func EnsureModule(doc *Document, id ModuleID, now int64) (bool, error) {
	m, ok := LookupModule(id)
	if !ok {
		return false, Invalid("WS-MOD-001", "unknown module "+string(id))
	}
	if !m.ensure(&doc.Data) {
		return false, nil
	}
	doc.Touch(now)
	return true, nil
}

// ModuleEnabled reports the presentation flag for id. Modules missing from
// the flag map of an older document count as enabled.
func ModuleEnabled(doc *Document, id ModuleID) bool {
	on, ok := doc.EnabledModules[id]
	return !ok || on
}

// SetModuleEnabled sets the presentation flag for id.
func SetModuleEnabled(doc *Document, id ModuleID, enabled bool, now int64) error {
	if _, ok := LookupModule(id); !ok {
		return Invalid("WS-MOD-001", "unknown module "+string(id))
	}
	if doc.EnabledModules == nil {
		doc.EnabledModules = map[ModuleID]bool{}
	}
	if cur, ok := doc.EnabledModules[id]; ok && cur == enabled {
		return nil
	}
	doc.EnabledModules[id] = enabled
	doc.Touch(now)
	return nil
}
