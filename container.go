package indexedcoll

import (
	"fmt"
	"strings"
)

// Container scopes index partitions and membership rows: a collection that
// belongs to an owner entity.
type Container struct {
	Owner      string
	Collection string
}

// Key returns "owner:collection".
func (c Container) Key() string {
	return c.Owner + ":" + c.Collection
}

func (c Container) String() string {
	return c.Key()
}

func (c Container) validate() error {
	if c.Owner == "" || c.Collection == "" {
		return fmt.Errorf("%w: container %q", ErrEmptyKey, c.Key())
	}
	if strings.IndexByte(c.Collection, ':') >= 0 {
		return fmt.Errorf("%w: collection name %q contains ':'", ErrInvalidQuery, c.Collection)
	}
	return nil
}

// ParseContainer parses "owner:collection". The owner may itself contain
// colons; the collection name may not.
func ParseContainer(s string) (Container, error) {
	i := strings.LastIndexByte(s, ':')
	if i <= 0 || i == len(s)-1 {
		return Container{}, fmt.Errorf("invalid container %q, expected owner:collection", s)
	}
	return Container{Owner: s[:i], Collection: s[i+1:]}, nil
}

// uniqueContainers drops containers with duplicate keys, keeping the first.
func uniqueContainers(containers []Container) []Container {
	if len(containers) < 2 {
		return containers
	}
	seen := make(map[string]bool, len(containers))
	result := make([]Container, 0, len(containers))
	for _, c := range containers {
		k := c.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		result = append(result, c)
	}
	return result
}
