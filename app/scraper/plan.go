package scraper

// Plan says which work items one cycle performs. Phase one runs every cycle;
// everything else runs on a differential cadence so the cheap headline
// counters stay fresh while the expensive walks happen less often.
type Plan struct {
	Discover        bool
	Stats           bool
	Structure       bool
	ChairmanUnits   bool
	CouncillorUnits bool
	Extraction      bool
}

// PlanCycle computes the work plan for cycle c. Discovery additionally runs
// whenever no election cache exists yet, which the scheduler layers on top.
func PlanCycle(c uint64) Plan {
	return Plan{
		Discover:        c%10 == 0,
		Stats:           true,
		Structure:       c%2 == 0,
		ChairmanUnits:   c%2 == 0,
		CouncillorUnits: c%3 == 0,
		Extraction:      c%4 == 0,
	}
}
