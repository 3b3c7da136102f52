package generator

import (
	"github.com/CrazyDubya/Loop/pkg/engine"
)

// ReachabilityReport summarizes what can be reached from the start node.
type ReachabilityReport struct {
	TotalNodes           int      `json:"total_nodes"`
	ReachableNodes       int      `json:"reachable_nodes"`
	UnreachableNodes     int      `json:"unreachable_nodes"`
	Unreachable          []string `json:"unreachable_list"`
	ReachableDeaths      int      `json:"reachable_deaths"`
	ReachableRevelations int      `json:"reachable_revelations"`
	CoveragePercent      float64  `json:"coverage_percent"`
}

// AnalyzeReachability reports coverage of the graph from the start node
// given the starting knowledge. Unreachable ids are listed in graph order.
func (e *Engine) AnalyzeReachability(knowledge engine.Set) (*ReachabilityReport, error) {
	start := e.graph.StartNode()
	if start == nil {
		return nil, ErrNoStartNode
	}

	reachable := e.graph.ReachabilityMap(start.ID, knowledge, nil)
	nodes := e.graph.Nodes()

	report := &ReachabilityReport{
		TotalNodes:     len(nodes),
		ReachableNodes: len(reachable),
		Unreachable:    []string{},
	}
	for _, n := range nodes {
		if !reachable.Has(n.ID) {
			report.Unreachable = append(report.Unreachable, n.ID)
			continue
		}
		if n.IsDeath() {
			report.ReachableDeaths++
		}
		if n.IsRevelation() {
			report.ReachableRevelations++
		}
	}
	report.UnreachableNodes = len(report.Unreachable)
	if len(nodes) > 0 {
		report.CoveragePercent = float64(len(reachable)) / float64(len(nodes)) * 100
	}
	return report, nil
}

// Statistics counts the structural features of a graph.
type Statistics struct {
	TotalNodes       int `json:"total_nodes"`
	TotalTransitions int `json:"total_transitions"`
	CriticalNodes    int `json:"critical_nodes"`
	DeathNodes       int `json:"death_nodes"`
	RevelationNodes  int `json:"revelation_nodes"`
	TimeSlots        int `json:"time_slots"`
	ChokePoints      int `json:"choke_points"`
	ValidationErrors int `json:"validation_errors"`
}

// Stats returns the graph's statistics.
func (e *Engine) Stats() Statistics {
	g := e.graph
	return Statistics{
		TotalNodes:       len(g.Nodes()),
		TotalTransitions: len(g.Transitions()),
		CriticalNodes:    len(g.CriticalNodes()),
		DeathNodes:       len(g.DeathNodes()),
		RevelationNodes:  len(g.RevelationNodes()),
		TimeSlots:        g.TotalTimeSlots,
		ChokePoints:      len(g.ChokePoints()),
		ValidationErrors: len(g.Validate()),
	}
}
