package sltm

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb/encoding/wkt"
	"github.com/pkg/errors"
)

// ExportToCSV writes assignment results: '<fname>_links.csv' and '<fname>_movements.csv'
func (assignment *Assignment) ExportToCSV(fname string) error {
	fnameParts := strings.Split(fname, ".csv")
	fnameLinks := fnameParts[0] + "_links.csv"
	fnameMovements := fnameParts[0] + "_movements.csv"

	err := assignment.exportLinksToCSV(fnameLinks)
	if err != nil {
		return errors.Wrap(err, "Can't export links")
	}

	err = assignment.exportMovementsToCSV(fnameMovements)
	if err != nil {
		return errors.Wrap(err, "Can't export movements")
	}
	return nil
}

func (assignment *Assignment) exportLinksToCSV(fname string) error {
	file, err := os.Create(fname)
	if err != nil {
		return errors.Wrap(err, "Can't create file")
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()
	writer.Comma = ';'

	err = writer.Write([]string{"id", "source_node", "target_node", "osm_way_id", "link_type", "was_bidirectional", "lanes", "max_speed", "capacity", "length_meters", "sending_flow", "outflow", "acceptance_factor", "travel_time_hours", "geom"})
	if err != nil {
		return errors.Wrap(err, "Can't write header")
	}

	sending := assignment.SendingFlows()
	outflows := assignment.OutFlows()
	alphas := assignment.AcceptanceFactors()
	costs := assignment.LinkCosts()
	for _, link := range assignment.net.links {
		err = writer.Write([]string{
			fmt.Sprintf("%d", link.ID),
			fmt.Sprintf("%d", link.sourceNodeID),
			fmt.Sprintf("%d", link.targetNodeID),
			fmt.Sprintf("%d", link.osmWayID),
			link.linkType.String(),
			fmt.Sprintf("%t", link.wasBidirectional),
			fmt.Sprintf("%d", link.lanes),
			fmt.Sprintf("%f", link.maxSpeed),
			fmt.Sprintf("%f", assignment.diagrams.LinkCapacity(link)),
			fmt.Sprintf("%f", link.lengthKm*1000.0),
			fmt.Sprintf("%f", sending[link.ID]),
			fmt.Sprintf("%f", outflows[link.ID]),
			fmt.Sprintf("%f", alphas[link.ID]),
			fmt.Sprintf("%f", costs[link.ID]),
			wkt.MarshalString(link.geom),
		})
		if err != nil {
			return errors.Wrap(err, "Can't write link")
		}
	}
	return nil
}

func (assignment *Assignment) exportMovementsToCSV(fname string) error {
	file, err := os.Create(fname)
	if err != nil {
		return errors.Wrap(err, "Can't create file")
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()
	writer.Comma = ';'

	err = writer.Write([]string{"id", "node_id", "income_link_id", "outcome_link_id", "type", "composite_type", "accepted_flow", "geom"})
	if err != nil {
		return errors.Wrap(err, "Can't write header")
	}

	accepted := assignment.AcceptedTurnFlows()
	for _, mvmt := range assignment.net.movements {
		err = writer.Write([]string{
			fmt.Sprintf("%d", mvmt.ID),
			fmt.Sprintf("%d", mvmt.NodeID),
			fmt.Sprintf("%d", mvmt.IncomingLinkID),
			fmt.Sprintf("%d", mvmt.OutcomingLinkID),
			mvmt.movementType.String(),
			mvmt.CompositeType(),
			fmt.Sprintf("%f", accepted[mvmt.ID]),
			wkt.MarshalString(mvmt.geom),
		})
		if err != nil {
			return errors.Wrap(err, "Can't write movement")
		}
	}
	return nil
}
