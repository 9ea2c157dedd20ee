package domain

const (
	AvatarIdCtxKey     = "starnet-avatarId"
	AvatarSourceCtxKey = "starnet-avatarSource"
)

const (
	AvatarIdHeader = "X-Avatar-Id"
)

// Where the avatar id of a request came from.
const (
	AvatarSourceContext = "context"
	AvatarSourceHeader  = "header"
	AvatarSourceToken   = "token"
)

const (
	DescriptorFileName = "starnet.dna.json"
	ManifestFileName   = "manifest.json"
	ContentDirName     = "content"
)

const (
	MetaKeyParentID   = "ParentId"
	MetaKeyClonedFrom = "ClonedFrom"
	MetaKeyCloudURL   = "CloudUrl"
	MetaKeyArtifact   = "Artifact"
)

const (
	EventCreated     = "holon.created"
	EventEdited      = "holon.edited"
	EventDeleted     = "holon.deleted"
	EventPublished   = "holon.published"
	EventUnpublished = "holon.unpublished"
	EventRepublished = "holon.republished"
	EventActivated   = "holon.activated"
	EventDeactivated = "holon.deactivated"
	EventCloned      = "holon.cloned"
	EventDownloaded  = "holon.downloaded"
)

// EventChannel is the pub/sub channel carrying events of one family.
func EventChannel(family string) string {
	return "starnet:events:" + family
}
