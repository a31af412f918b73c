// Package lifecycle drives security life-cycle state transitions on the DUT
// over the life-cycle controller TAP: strap sequencing, transition
// triggering with optional unlock tokens, and post-transition state
// verification against the controller's redundant encoding.
package lifecycle

import "fmt"

// State is a target life-cycle state. Values match the controller's state
// numbering; transitions are one-way except between the test states.
type State uint32

const (
	Raw State = iota
	TestUnlocked0
	TestLocked0
	TestUnlocked1
	TestLocked1
	TestUnlocked2
	TestLocked2
	TestUnlocked3
	TestLocked3
	TestUnlocked4
	TestLocked4
	TestUnlocked5
	TestLocked5
	TestUnlocked6
	TestLocked6
	TestUnlocked7
	Dev
	Prod
	ProdEnd
	Rma
	Scrap
)

var stateNames = map[State]string{
	Raw:           "raw",
	TestUnlocked0: "test_unlocked0",
	TestLocked0:   "test_locked0",
	TestUnlocked1: "test_unlocked1",
	TestLocked1:   "test_locked1",
	TestUnlocked2: "test_unlocked2",
	TestLocked2:   "test_locked2",
	TestUnlocked3: "test_unlocked3",
	TestLocked3:   "test_locked3",
	TestUnlocked4: "test_unlocked4",
	TestLocked4:   "test_locked4",
	TestUnlocked5: "test_unlocked5",
	TestLocked5:   "test_locked5",
	TestUnlocked6: "test_unlocked6",
	TestLocked6:   "test_locked6",
	TestUnlocked7: "test_unlocked7",
	Dev:           "dev",
	Prod:          "prod",
	ProdEnd:       "prod_end",
	Rma:           "rma",
	Scrap:         "scrap",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", uint32(s))
}

// ParseState resolves a state name as used on the command line.
func ParseState(name string) (State, error) {
	for s, n := range stateNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("lifecycle: unknown state %q", name)
}

// redundantMultiplier replicates a 5-bit state value into the six copies
// the controller stores in hardware.
const redundantMultiplier = 0x02108421

// RedundantEncoding returns the value the controller's state register
// reports for this state: the 5-bit state number replicated six times.
func (s State) RedundantEncoding() uint32 {
	return uint32(s) * redundantMultiplier
}

// RequiresToken reports whether a transition into this state must present
// an unlock token.
func (s State) RequiresToken() bool {
	switch s {
	case TestUnlocked0, TestUnlocked1, TestUnlocked2, TestUnlocked3,
		TestUnlocked4, TestUnlocked5, TestUnlocked6, TestUnlocked7, Rma:
		return true
	}
	return false
}
