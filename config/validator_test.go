// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/fedcounter/fedid"
)

func validParams() Parameters {
	p := Defaults()
	p.NodeID = "n1"
	p.KnownNodes = []fedid.NodeID{"n1", "n2", "n3"}
	return p
}

func TestValidateAccepts(t *testing.T) {
	require.NoError(t, validParams().Validate())
}

func TestValidateRejectsEmptyNodeID(t *testing.T) {
	p := validParams()
	p.NodeID = ""
	require.ErrorIs(t, p.Validate(), ErrEmptyNodeID)
}

func TestValidateRejectsTooFewKnownNodes(t *testing.T) {
	p := validParams()
	p.KnownNodes = []fedid.NodeID{"n1", "n2"}
	require.ErrorIs(t, p.Validate(), ErrTooFewKnownNodes)
}

func TestValidateRejectsNodeNotInFederation(t *testing.T) {
	p := validParams()
	p.NodeID = "n9"
	require.ErrorIs(t, p.Validate(), ErrNodeNotInFederation)
}

func TestValidateRejectsDuplicateNode(t *testing.T) {
	p := validParams()
	p.KnownNodes = []fedid.NodeID{"n1", "n2", "n2"}
	require.ErrorIs(t, p.Validate(), ErrDuplicateNode)
}

func TestQuorumFloorsAtThree(t *testing.T) {
	p := validParams()
	p.KnownNodes = []fedid.NodeID{"n1", "n2", "n3"}
	require.Equal(t, 3, p.Quorum())
}

func TestQuorumMajority(t *testing.T) {
	p := validParams()
	p.KnownNodes = []fedid.NodeID{"n1", "n2", "n3", "n4", "n5"}
	require.Equal(t, 3, p.Quorum())

	p.KnownNodes = append(p.KnownNodes, "n6", "n7")
	require.Equal(t, 4, p.Quorum())
}
