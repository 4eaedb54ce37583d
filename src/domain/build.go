package domain

type BuildInfoType struct {
	Version string
	Commit  string
}

// BuildInfo is filled in by main from the values linked into the binary.
var BuildInfo BuildInfoType
