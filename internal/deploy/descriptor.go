package deploy

// AssetRecord maps a site-relative POSIX path (no leading slash) to the
// MD5 hex digest of the file's bytes. Populated once per deploy by Collect
// and never mutated afterwards.
type AssetRecord map[string]string

// Descriptor holds the state of a single deploy invocation.
// It is created fresh per deploy and discarded at process exit.
type Descriptor struct {
	// DeployPath is the absolute directory being deployed.
	DeployPath string

	// AppID identifies the website on the server.
	AppID string

	// SiteName is the website's name, used as the bundle entry prefix.
	SiteName string

	// VersionID is the client-generated UUID for the new version.
	VersionID string

	// Stage is the target environment, e.g. "production".
	Stage string

	// Rules is the merged ignore rule set applied during collection
	// and bundling.
	Rules *IgnoreRuleSet

	// Files is populated by Collect: relative path -> content hash.
	Files AssetRecord

	// TotalSize and FileCount accumulate during collection and are
	// reported to the server as version metadata.
	TotalSize int64
	FileCount int
}