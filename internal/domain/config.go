package domain

import "time"

// Config is the node-level configuration handed to services.
type Config struct {
	FQDN            string
	PrivateKey      string
	PublishRoot     string
	InstallRoot     string
	SourceRoot      string
	ArtifactRoot    string
	PipelineTimeout time.Duration
	VerboseErrors   bool
}
