package actions

// NewDefaultRegistry builds the registry of built-in actions. Deployments
// extend the map with their vendor catalogs before construction; after
// NewRegistry the mapping is immutable.
func NewDefaultRegistry(store *MemoryStore, extra map[string]Handler) *Registry {
	if store == nil {
		store = NewMemoryStore()
	}
	mem := NewMemoryActions(store)

	handlers := map[string]Handler{
		// Session memory
		"memory_save_session":   mem.Save,
		"memory_get_session":    mem.Get,
		"memory_list_sessions":  mem.List,
		"memory_delete_session": mem.Delete,
		"memory_export_session": mem.Export,

		// Graph passthroughs
		"profile_get_me":       ProfileGetMe,
		"profile_get_my_photo": ProfileGetMyPhoto,
	}
	for name, h := range extra {
		handlers[name] = h
	}
	return NewRegistry(handlers)
}
