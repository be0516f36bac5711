// Package access decides whether a requester may read or modify a stored
// object. It holds no state and performs no I/O.
package access

import (
	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
)

type Reason string

const (
	ReasonAdmitted     Reason = "admitted"
	ReasonUnauthorized Reason = "unauthorized"
	ReasonForbidden    Reason = "forbidden"
	ReasonNotFound     Reason = "not-found"
)

type Decision struct {
	Allowed bool
	Reason  Reason
}

var admitted = Decision{Allowed: true, Reason: ReasonAdmitted}

func deny(r Reason) Decision {
	return Decision{Reason: r}
}

// Err maps a denial onto the common sentinel errors; nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case ReasonUnauthorized:
		return common.ErrorUnauthorized
	case ReasonForbidden:
		return common.ErrorForbidden
	case ReasonNotFound:
		return common.ErrorNotFound
	default:
		return common.ErrorInternal
	}
}

// AuthorizeRead admits anyone to a public object and only the owner to a
// private one. requesterID is "" for anonymous callers.
func AuthorizeRead(o *models.StoredObject, requesterID string) Decision {
	if o == nil {
		return deny(ReasonNotFound)
	}
	if o.IsPublic() {
		return admitted
	}
	if requesterID == "" {
		return deny(ReasonUnauthorized)
	}
	if o.OwnerID != requesterID {
		return deny(ReasonForbidden)
	}
	return admitted
}

// AuthorizeWrite admits only the owner, whatever the visibility.
func AuthorizeWrite(o *models.StoredObject, requesterID string) Decision {
	if o == nil {
		return deny(ReasonNotFound)
	}
	if requesterID == "" {
		return deny(ReasonUnauthorized)
	}
	if o.OwnerID != requesterID {
		return deny(ReasonForbidden)
	}
	return admitted
}
