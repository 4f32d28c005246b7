package chainsync

import (
	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/module"
)

type Ancestry int

const (
	AncestryUnknown Ancestry = iota
	IsAncestor
	NotAncestor
)

// IsAncestorOf checks whether a is an ancestor of b (or b itself) by walking
// down the imported headers from b. The answer is unknown if some block on
// the way was not imported.
func IsAncestorOf(chainStatus module.ChainStatus, a, b chain.BlockID) (Ancestry, error) {
	if a.Number > b.Number {
		return NotAncestor, nil
	}
	headers, err := headersDown(chainStatus, b, a.Number)
	if err != nil {
		return AncestryUnknown, err
	}
	if headers == nil {
		return AncestryUnknown, nil
	}
	if len(headers) == 0 {
		if a == b {
			return IsAncestor, nil
		}
		return NotAncestor, nil
	}
	parent, _ := headers[len(headers)-1].ParentID()
	if parent == a {
		return IsAncestor, nil
	}
	return NotAncestor, nil
}

// HeadersPath returns the headers of the blocks on the branch from `from`
// (exclusive) to `to` (inclusive), by ascending number. It returns nil if
// `to` does not descend from `from` or the branch is not fully imported.
func HeadersPath(chainStatus module.ChainStatus, from, to chain.BlockID) ([]chain.Header, error) {
	ancestry, err := IsAncestorOf(chainStatus, from, to)
	if err != nil || ancestry != IsAncestor {
		return nil, err
	}
	headers, err := headersDown(chainStatus, to, from.Number)
	if err != nil {
		return nil, err
	}
	reverse(headers)
	return headers, nil
}

// BlockPath returns the blocks on the branch from `from` (exclusive) to `to`
// (inclusive), by ascending number, or nil under the conditions of HeadersPath.
func BlockPath(chainStatus module.ChainStatus, from, to chain.BlockID) ([]chain.Block, error) {
	headers, err := HeadersPath(chainStatus, from, to)
	if err != nil || headers == nil {
		return nil, err
	}
	return blocksOf(chainStatus, headers)
}

// headersDown collects the headers from `top` down to the block at number
// bottom+1, by descending number. It returns nil if `top` is not imported.
func headersDown(chainStatus module.ChainStatus, top chain.BlockID, bottom uint32) ([]chain.Header, error) {
	if top.Number <= bottom {
		return []chain.Header{}, nil
	}
	headers := make([]chain.Header, 0, top.Number-bottom)
	for cur := top; cur.Number > bottom; {
		header, err := chainStatus.Header(cur)
		if err != nil {
			return nil, NewChainStatusErrorf("could not read header %v: %w", cur, err)
		}
		if header == nil {
			if cur == top {
				return nil, nil
			}
			return nil, NewChainStatusExtErrorf("imported block %v has no imported parent %v", headers[len(headers)-1].ID(), cur)
		}
		headers = append(headers, *header)
		cur, _ = header.ParentID()
	}
	return headers, nil
}

func blocksOf(chainStatus module.ChainStatus, headers []chain.Header) ([]chain.Block, error) {
	blocks := make([]chain.Block, 0, len(headers))
	for _, header := range headers {
		id := header.ID()
		block, err := chainStatus.Block(id)
		if err != nil {
			return nil, NewChainStatusErrorf("could not read block %v: %w", id, err)
		}
		if block == nil {
			return nil, NewChainStatusExtErrorf("block %v has an imported header but no body", id)
		}
		blocks = append(blocks, *block)
	}
	return blocks, nil
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
