package cloud

import (
	"context"
	"errors"
	"fmt"

	"tribeboard/internal/errs"
	"tribeboard/internal/models"
)

// AccountStatus reports the platform account's ability to reach the remote
// store.
type AccountStatus int

const (
	AccountUnknown AccountStatus = iota
	AccountAvailable
	AccountNoAccount
	AccountRestricted
	AccountTemporarilyUnavailable
)

func (s AccountStatus) String() string {
	switch s {
	case AccountAvailable:
		return "available"
	case AccountNoAccount:
		return "no_account"
	case AccountRestricted:
		return "restricted"
	case AccountTemporarilyUnavailable:
		return "temporarily_unavailable"
	default:
		return "unknown"
	}
}

// Transport-level errors a RecordService implementation reports. Classify
// maps them onto the engine taxonomy; this mapping is the single source of
// truth for retry decisions downstream.
var (
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrNetworkFailure     = errors.New("network failure")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrRateLimited        = errors.New("rate limited")
	ErrZoneBusy           = errors.New("zone busy")
	ErrQuotaExceeded      = errors.New("quota exceeded")
	ErrUnknownItem        = errors.New("unknown item")
	ErrValidation         = errors.New("record validation failure")

	// ErrComplexQuery is returned by Fetch when the service cannot
	// evaluate a query shape server-side.
	ErrComplexQuery = errors.New("query too complex for remote evaluation")
)

// RecordService is the platform cloud service. Implementations wrap the
// real service; MemoryService backs tests and local development.
type RecordService interface {
	AccountStatus(ctx context.Context) (AccountStatus, error)
	EnsureZone(ctx context.Context, zone string) error
	Subscribe(ctx context.Context, familyID string) (subscriptionID string, err error)
	Save(ctx context.Context, record Record) (Record, error)
	Fetch(ctx context.Context, kind string, query Query) ([]Record, error)
}

// Classify maps a remote error onto the engine taxonomy. Errors that are
// already classified pass through; unrecognized errors are treated as a
// retryable service outage so local durability is never blocked on them.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errs.CodeOf(err) != "" {
		return err
	}
	switch {
	case errors.Is(err, ErrNetworkUnavailable), errors.Is(err, ErrNetworkFailure):
		return errs.Wrap(errs.CodeNetworkUnavailable, "remote store unreachable", err)
	case errors.Is(err, ErrServiceUnavailable):
		return errs.Wrap(errs.CodeServiceUnavailable, "remote store unavailable", err)
	case errors.Is(err, ErrRateLimited):
		return errs.Wrap(errs.CodeRateLimited, "remote store throttled the request", err)
	case errors.Is(err, ErrZoneBusy):
		return errs.Wrap(errs.CodeZoneBusy, "record zone busy", err)
	case errors.Is(err, ErrQuotaExceeded):
		return errs.Wrap(errs.CodeQuotaExceeded, "remote account over quota", err)
	case errors.Is(err, ErrUnknownItem):
		return errs.Wrap(errs.CodeUnknownItem, "record not found on remote store", err)
	case errors.Is(err, ErrValidation):
		return errs.Wrap(errs.CodeConstraintViolation, "remote store rejected the record", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errs.Wrap(errs.CodeNetworkUnavailable, "remote call interrupted", err)
	default:
		return errs.Wrap(errs.CodeServiceUnavailable, "remote store error", err)
	}
}

// DefaultZone is the record zone holding all family data.
const DefaultZone = "FamilyZone"

// Client is the cloud sync client consumed by the sync manager and the
// creation orchestrator.
type Client struct {
	svc RecordService
}

// NewClient wraps a record service.
func NewClient(svc RecordService) *Client {
	return &Client{svc: svc}
}

// AccountStatus queries the platform account status.
func (c *Client) AccountStatus(ctx context.Context) (AccountStatus, error) {
	status, err := c.svc.AccountStatus(ctx)
	if err != nil {
		return AccountUnknown, Classify(err)
	}
	return status, nil
}

// EnsureZoneAndSubscriptions provisions the record zone and change
// subscriptions for the given families. Used as a protocol only; the
// provisioning itself belongs to the platform service.
func (c *Client) EnsureZoneAndSubscriptions(ctx context.Context, familyIDs ...string) error {
	if err := c.svc.EnsureZone(ctx, DefaultZone); err != nil {
		return Classify(err)
	}
	for _, id := range familyIDs {
		if _, err := c.svc.Subscribe(ctx, id); err != nil {
			return Classify(err)
		}
	}
	return nil
}

// SaveFamily pushes a family record and returns the saved record with its
// server-assigned modification time.
func (c *Client) SaveFamily(ctx context.Context, family *models.Family) (Record, error) {
	saved, err := c.svc.Save(ctx, FamilyRecord(family))
	if err != nil {
		return Record{}, Classify(err)
	}
	return saved, nil
}

// SaveMember pushes a member record.
func (c *Client) SaveMember(ctx context.Context, member *models.Member) (Record, error) {
	saved, err := c.svc.Save(ctx, MemberRecord(member))
	if err != nil {
		return Record{}, Classify(err)
	}
	return saved, nil
}

// SaveMembership pushes a membership record.
func (c *Client) SaveMembership(ctx context.Context, membership *models.Membership) (Record, error) {
	saved, err := c.svc.Save(ctx, MembershipRecord(membership))
	if err != nil {
		return Record{}, Classify(err)
	}
	return saved, nil
}

// FetchByQuery runs a query against the remote store. When the service
// rejects the query shape, the client fetches the kind's records and
// filters locally instead of failing the operation.
func (c *Client) FetchByQuery(ctx context.Context, kind string, query Query) ([]Record, error) {
	records, err := c.svc.Fetch(ctx, kind, query)
	if err == nil {
		return records, nil
	}
	if !errors.Is(err, ErrComplexQuery) {
		return nil, Classify(err)
	}

	all, err := c.svc.Fetch(ctx, kind, All())
	if err != nil {
		return nil, Classify(err)
	}
	var matched []Record
	for _, r := range all {
		if query.Matches(r) {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

// FamilyByCode looks a family up on the remote store by join code. Returns
// nil when no record matches.
func (c *Client) FamilyByCode(ctx context.Context, code string) (*models.Family, error) {
	records, err := c.FetchByQuery(ctx, RecordKindFamily, ByCode(code))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	family, err := FamilyFromRecord(records[0])
	if err != nil {
		return nil, fmt.Errorf("decoding family record: %w", err)
	}
	return family, nil
}

// CodeInUse reports whether a join code exists on the remote store.
func (c *Client) CodeInUse(ctx context.Context, code string) (bool, error) {
	records, err := c.FetchByQuery(ctx, RecordKindFamily, ByCode(code))
	if err != nil {
		return false, err
	}
	return len(records) > 0, nil
}

// RecordByID fetches a single record of any kind by record name. Returns
// the zero record and false when nothing matches.
func (c *Client) RecordByID(ctx context.Context, recordID string) (Record, bool, error) {
	for _, kind := range []string{RecordKindFamily, RecordKindMember, RecordKindMembership} {
		records, err := c.FetchByQuery(ctx, kind, ByRecordID(recordID))
		if err != nil {
			return Record{}, false, err
		}
		if len(records) > 0 {
			return records[0], true, nil
		}
	}
	return Record{}, false, nil
}
