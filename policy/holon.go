package policy

import (
	_ "embed"
	"encoding/json"
	"sync"

	"github.com/totegamma/starnet/internal/domain"
)

const (
	ActionEdit       = "holon.edit"
	ActionDelete     = "holon.delete"
	ActionPublish    = "holon.publish"
	ActionTransition = "holon.transition"
	ActionUninstall  = "holon.uninstall"
	ActionDownload   = "holon.download"
)

//go:embed holon.json
var holonPolicyJSON []byte

var holonPolicy = sync.OnceValues(func() (PolicyDocument, error) {
	var doc PolicyDocument
	err := json.Unmarshal(holonPolicyJSON, &doc)
	return doc, err
})

// HolonPolicy is the built-in document guarding holon operations.
func HolonPolicy() (PolicyDocument, error) {
	return holonPolicy()
}

// HolonContext exposes h to Load expressions under "this".
func HolonContext(requester string, h domain.Holon) RequestContext {
	meta := make(map[string]any, len(h.MetaData))
	for k, v := range h.MetaData {
		meta[k] = v
	}
	return RequestContext{
		Requester: requester,
		This: map[string]any{
			"id":         h.ID,
			"version":    h.Version,
			"family":     h.Family,
			"subtype":    h.Subtype,
			"ownerId":    h.OwnerID,
			"status":     string(h.Status),
			"registered": h.Registered,
			"metaData":   meta,
		},
	}
}
