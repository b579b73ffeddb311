// Package simulation provides a multi-cycle test harness for the daily
// simulation.
//
// The harness exercises the real cycle Runner against a real SQLite store, no
// mocks. A Scenario names how many days to run, the seed of each day and any
// configuration tweaks; the Runner executes the days in order and captures the
// cycle result and the full persisted dataset after each one, so tests can
// assert properties that only show up across days.
//
// Each test gets an isolated SQLite database via t.TempDir().
//
// Usage:
//
//	func TestWeekOfData(t *testing.T) {
//	    r := simulation.NewRunner(t)
//	    result := r.Run(simulation.Scenario{
//	        Name:  "week",
//	        Days:  7,
//	        Seeds: simulation.SequentialSeeds(100),
//	    })
//	    simulation.AssertValid(t, result.Final())
//	    simulation.AssertConsecutiveDays(t, result)
//	}
package simulation
