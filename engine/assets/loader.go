package assets

// Loader turns a file of one asset type into its in-memory form. Loaders
// are called from worker goroutines and must be safe for concurrent use.
type Loader interface {
	Load(name, path string) (interface{}, error)
	Unload(asset interface{}) error
}
