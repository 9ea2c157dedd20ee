package domain

import (
	"maps"
	"time"
)

// LatestVersion is the version sentinel that resolves to the greatest stored version.
const LatestVersion = 0

type Status string

const (
	StatusDraft       Status = "Draft"
	StatusPublished   Status = "Published"
	StatusUnpublished Status = "Unpublished"
	StatusActive      Status = "Active"
	StatusInactive    Status = "Inactive"
)

// Holon is one version record of a versioned, publishable entity.
type Holon struct {
	ID            string            `json:"id"`
	Version       int               `json:"version"`
	Family        string            `json:"family"`
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	Subtype       string            `json:"subtype"`
	OwnerID       string            `json:"ownerId"`
	Status        Status            `json:"status"`
	SourcePath    string            `json:"sourcePath,omitempty"`
	PublishedPath string            `json:"publishedPath,omitempty"`
	InstalledPath string            `json:"installedPath,omitempty"`
	LaunchTarget  string            `json:"launchTarget,omitempty"`
	Digest        string            `json:"digest,omitempty"`
	Registered    bool              `json:"registered"`
	MetaData      map[string]string `json:"metaData"`
	PublishedOn   *time.Time        `json:"publishedOn,omitempty"`
	PublishedBy   string            `json:"publishedBy,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// Clone returns a copy that shares no mutable state with h.
func (h Holon) Clone() Holon {
	c := h
	c.MetaData = maps.Clone(h.MetaData)
	if h.PublishedOn != nil {
		t := *h.PublishedOn
		c.PublishedOn = &t
	}
	return c
}

// EverPublished reports whether this version has been published at least once.
func (h Holon) EverPublished() bool {
	return h.PublishedOn != nil
}

type CreateOptions struct {
	LaunchTarget string            `json:"launchTarget"`
	MetaData     map[string]string `json:"metaData"`
}

type PublishOptions struct {
	SourcePath        string `json:"sourcePath"`
	LaunchTarget      string `json:"launchTarget"`
	PublishPath       string `json:"publishPath"`
	Edit              bool   `json:"edit"`
	RegisterOnNetwork bool   `json:"registerOnSTARNET"`
	GenerateBinary    bool   `json:"generateBinary"`
	UploadToCloud     bool   `json:"uploadToCloud"`
}

type PublishResult struct {
	Holon        Holon    `json:"holon"`
	ManifestPath string   `json:"manifestPath"`
	ArtifactPath string   `json:"artifactPath,omitempty"`
	CloudURL     string   `json:"cloudUrl,omitempty"`
	Partial      bool     `json:"partial"`
	Warnings     []string `json:"warnings,omitempty"`
}

type DownloadResult struct {
	Holon   Holon  `json:"holon"`
	Path    string `json:"path"`
	Success bool   `json:"success"`
	Skipped bool   `json:"skipped"`
}

// Manifest is written next to published content and describes it.
type Manifest struct {
	ID           string            `json:"id"`
	Version      int               `json:"version"`
	Family       string            `json:"family"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Subtype      string            `json:"subtype"`
	OwnerID      string            `json:"ownerId"`
	LaunchTarget string            `json:"launchTarget,omitempty"`
	MetaData     map[string]string `json:"metaData,omitempty"`
	Digest       string            `json:"digest"`
	Size         int64             `json:"size"`
	Files        int               `json:"files"`
	PublishedOn  time.Time         `json:"publishedOn"`
	Signer       string            `json:"signer,omitempty"`
	Signature    string            `json:"signature,omitempty"`
}

// Descriptor is the small file kept in source and installed folders
// pointing back at the holon record.
type Descriptor struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
	Family  string `json:"family"`
	Name    string `json:"name"`
}

// ContentInfo summarises a content tree.
type ContentInfo struct {
	Digest string
	Size   int64
	Files  int
}

// HolonQuery selects records from the store. Zero values mean "any".
type HolonQuery struct {
	Family      string
	OwnerID     string
	Subtype     string
	AllVersions bool
}

type MatchMode string

const (
	MatchAll MatchMode = "All"
	MatchAny MatchMode = "Any"
)

type SearchParams struct {
	Term            string            `json:"searchTerm"`
	Filters         map[string]string `json:"filters"`
	MatchMode       MatchMode         `json:"matchMode"`
	ScopeToOwner    bool              `json:"searchOnlyForCurrentAvatar"`
	ShowAllVersions bool              `json:"showAllVersions"`
	Version         int               `json:"version"`
}

// NetworkEntry is what other identities discover for a registered holon.
type NetworkEntry struct {
	ID           string    `json:"id"`
	Version      int       `json:"version"`
	Family       string    `json:"family"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Subtype      string    `json:"subtype"`
	OwnerID      string    `json:"ownerId"`
	ManifestPath string    `json:"manifestPath"`
	Digest       string    `json:"digest"`
	CloudURL     string    `json:"cloudUrl,omitempty"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// Event is a lifecycle notification fanned out to realtime subscribers.
type Event struct {
	Type      string    `json:"type"`
	Family    string    `json:"family"`
	ID        string    `json:"id"`
	Version   int       `json:"version"`
	Status    Status    `json:"status"`
	OwnerID   string    `json:"ownerId"`
	Timestamp time.Time `json:"timestamp"`
}
