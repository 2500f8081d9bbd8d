package sltm

import (
	"io"
	"math"

	geojson "github.com/paulmach/go.geojson"
	"github.com/pkg/errors"
)

// ExportToGeoJSON writes FeatureCollection of link segments with assignment results as properties
func (assignment *Assignment) ExportToGeoJSON(w io.Writer) error {
	collection := assignment.featureCollection()
	b, err := collection.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "Can't marshal feature collection")
	}
	_, err = w.Write(b)
	if err != nil {
		return errors.Wrap(err, "Can't write feature collection")
	}
	return nil
}

func (assignment *Assignment) featureCollection() *geojson.FeatureCollection {
	collection := geojson.NewFeatureCollection()
	sending := assignment.SendingFlows()
	outflows := assignment.OutFlows()
	alphas := assignment.AcceptanceFactors()
	costs := assignment.LinkCosts()
	for _, link := range assignment.net.links {
		pts2d := make([][]float64, len(link.geom))
		for i, pt := range link.geom {
			pts2d[i] = []float64{pt.Lon(), pt.Lat()}
		}
		feature := geojson.NewLineStringFeature(pts2d)
		feature.ID = int(link.ID)
		feature.SetProperty("link_type", link.linkType.String())
		feature.SetProperty("lanes", link.lanes)
		capacity := assignment.diagrams.LinkCapacity(link)
		if math.IsInf(capacity, 1) {
			// JSON has no infinity
			capacity = -1
		}
		feature.SetProperty("capacity", capacity)
		feature.SetProperty("sending_flow", sending[link.ID])
		feature.SetProperty("outflow", outflows[link.ID])
		feature.SetProperty("acceptance_factor", alphas[link.ID])
		feature.SetProperty("travel_time_hours", costs[link.ID])
		collection.AddFeature(feature)
	}
	return collection
}
