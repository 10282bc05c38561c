package merkle_test

import (
	"testing"

	"github.com/cloakchain/gateway/foundation/chain/merkle"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

// =============================================================================

type entry struct {
	value string
}

func (e entry) Hash() ([]byte, error) {
	return crypto.Keccak256([]byte(e.value)), nil
}

func (e entry) Equals(other entry) bool {
	return e.value == other.value
}

func Test_Tree(t *testing.T) {
	entries := []entry{{"alpha"}, {"beta"}, {"gamma"}}

	t.Log("Given the need to bind a set of values to a root digest.")
	{
		t.Logf("\tTest 0:\tWhen generating and verifying a tree.")
		{
			tree, err := merkle.NewTree(entries)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to construct the tree: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to construct the tree.", success)

			if len(tree.MerkleRoot) == 0 {
				t.Fatalf("\t%s\tTest 0:\tShould produce a root digest.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould produce a root digest.", success)

			if err := tree.Verify(); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould verify the generated tree: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould verify the generated tree.", success)

			same, err := merkle.NewTree(entries)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to rebuild the tree: %v", failed, err)
			}
			if string(same.MerkleRoot) != string(tree.MerkleRoot) {
				t.Fatalf("\t%s\tTest 0:\tShould produce the same root for the same values.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould produce the same root for the same values.", success)

			different, err := merkle.NewTree([]entry{{"alpha"}, {"beta"}, {"delta"}})
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to build a second tree: %v", failed, err)
			}
			if string(different.MerkleRoot) == string(tree.MerkleRoot) {
				t.Fatalf("\t%s\tTest 0:\tShould produce a different root for different values.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould produce a different root for different values.", success)
		}
	}
}
