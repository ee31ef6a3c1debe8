package mcptools

// ScanConflictsInput is the input for the scan_conflicts MCP tool.
type ScanConflictsInput struct {
	RepoPath string `json:"repoPath,omitempty" jsonschema:"path to the git repository (default: cwd)"`
}

// ConflictedFile describes one file with unresolved conflict markers.
type ConflictedFile struct {
	Path  string `json:"path"`
	Hunks int    `json:"hunks"`
}

// ScanConflictsOutput is the result of the scan_conflicts MCP tool.
type ScanConflictsOutput struct {
	Files []ConflictedFile `json:"files"`
}

// ResolveConflictsInput is the input for the resolve_conflicts MCP tool.
type ResolveConflictsInput struct {
	RepoPath string   `json:"repoPath,omitempty" jsonschema:"path to the git repository (default: cwd)"`
	Paths    []string `json:"paths,omitempty" jsonschema:"files to resolve (default: every conflicted file)"`
}

// ResolvedFile summarizes the outcome for one file.
type ResolvedFile struct {
	Path     string `json:"path"`
	Hunks    int    `json:"hunks"`
	Resolved int    `json:"resolved"`
	Written  bool   `json:"written"`
	Error    string `json:"error,omitempty"`
}

// ResolveConflictsOutput is the result of the resolve_conflicts MCP tool.
type ResolveConflictsOutput struct {
	Files   []ResolvedFile `json:"files"`
	Message string         `json:"message,omitempty"`
}
