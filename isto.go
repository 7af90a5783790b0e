package isto

import (
	"regexp"
	"time"

	"github.com/pkg/errors"

	"github.com/jreunanen/isto/layout"
	"github.com/jreunanen/isto/tier"
	"github.com/jreunanen/isto/tstamp"
)

// Resolution is the depth of time-based subdirectories isto builds
// beneath each tier's root.
type Resolution = layout.Resolution

const (
	Days    = layout.Days
	Hours   = layout.Hours
	Minutes = layout.Minutes
)

// Op is a timestamp comparison operator for GetDataByTimestamp.
type Op string

const (
	LT      Op = "<"
	LE      Op = "<="
	EQ      Op = "="
	GE      Op = ">="
	GT      Op = ">"
	Nearest Op = "~"
)

// Order controls the sort direction of GetDataItems results.
type Order = tier.Order

const (
	DontCare = tier.DontCare
	Asc      = tier.Asc
	Desc     = tier.Desc
)

var idRE = regexp.MustCompile(`^\S+$`)

// DataItem is an immutable record of one stored blob.
type DataItem struct {
	ID          string
	Data        []byte
	Timestamp   time.Time
	IsPermanent bool
	Tags        map[string]string

	valid bool
}

// NewDataItem constructs a DataItem, rounding timestamp to the
// precision the on-disk timestamp codec preserves so that the
// in-memory instant equals the instant that will later be read back
// from storage. It returns an error if id is not a legal filename
// component (empty, containing a path separator, or containing
// whitespace).
func NewDataItem(id string, data []byte, timestamp time.Time, isPermanent bool, tags map[string]string) (DataItem, error) {
	if err := ValidateID(id); err != nil {
		return DataItem{}, err
	}
	rounded, err := tstamp.Round(timestamp)
	if err != nil {
		return DataItem{}, errors.Wrap(err, "rounding timestamp")
	}
	return DataItem{
		ID:          id,
		Data:        data,
		Timestamp:   rounded,
		IsPermanent: isPermanent,
		Tags:        tags,
		valid:       true,
	}, nil
}

// Invalid returns the sentinel "not found" DataItem.
func Invalid() DataItem { return DataItem{} }

// IsValid reports whether d is a real item rather than the sentinel
// "not found" value returned by lookups that find nothing.
func (d DataItem) IsValid() bool { return d.valid }

// ValidateID reports whether id is legal as both a SQL primary key and a
// filename component: non-empty, and free of path separators and
// whitespace (the latter because tag-filtered queries and the id-listing
// tools split on whitespace).
func ValidateID(id string) error {
	if id == "" {
		return errors.New("id must not be empty")
	}
	if !idRE.MatchString(id) {
		return errors.Errorf("id %q must not contain whitespace or path separators", id)
	}
	for _, r := range id {
		if r == '/' || r == '\\' {
			return errors.Errorf("id %q must not contain path separators", id)
		}
	}
	return nil
}

// Configuration configures a Store.
type Configuration struct {
	RotatingDirectory  string
	PermanentDirectory string

	// MaxRotatingDataToKeepInGiB bounds the rotating tier's total content
	// size. Defaults to 100.0 if zero.
	MaxRotatingDataToKeepInGiB float64

	// MinFreeDiskSpaceInGiB is the free-disk-space floor the rotating
	// tier must maintain after every save. Defaults to 0.5 if zero.
	MinFreeDiskSpaceInGiB float64

	// Tags is the ordered, fixed set of declared tag names. Unknown keys
	// in an item's Tags map are discarded at insert time; declared tags
	// not supplied default to the empty string. Fixed at first Open.
	Tags []string

	// DeletionFlushInterval bounds rollback cost during a long eviction
	// sweep. Defaults to 1000 if zero.
	DeletionFlushInterval int

	// DirectoryStructureResolution is the depth of time-based
	// subdirectories under each tier root.
	DirectoryStructureResolution Resolution
}

const (
	gib                       = 1024 * 1024 * 1024
	defaultMaxRotatingGiB     = 100.0
	defaultMinFreeDiskGiB     = 0.5
	defaultDeletionFlushEvery = 1000
)

func (c Configuration) maxRotatingBytes() int64 {
	v := c.MaxRotatingDataToKeepInGiB
	if v == 0 {
		v = defaultMaxRotatingGiB
	}
	return int64(v * gib)
}

func (c Configuration) minFreeDiskBytes() int64 {
	v := c.MinFreeDiskSpaceInGiB
	if v == 0 {
		v = defaultMinFreeDiskGiB
	}
	return int64(v * gib)
}

func (c Configuration) deletionFlushInterval() int {
	if c.DeletionFlushInterval == 0 {
		return defaultDeletionFlushEvery
	}
	return c.DeletionFlushInterval
}

// filterTags keeps only the declared tags, defaulting the rest to "".
func (c Configuration) filterTags(in map[string]string) map[string]string {
	out := make(map[string]string, len(c.Tags))
	for _, tag := range c.Tags {
		out[tag] = in[tag]
	}
	return out
}
