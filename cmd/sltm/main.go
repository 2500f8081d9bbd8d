package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/LdDl/sltm"
	"github.com/go-logr/logr"
	"github.com/paulmach/osm"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	osmFileName   = flag.String("file", "my_graph.osm.pbf", "Filename of *.osm.pbf or *.osm file")
	demandFile    = flag.String("demand", "demand.csv", "Filename of demand CSV file with header: 'origin_osm_node;destination_osm_node;pcu_hour'")
	out           = flag.String("out", "result.csv", "Filename prefix of 'Comma-Separated Values' (CSV) formatted results. E.g.: if file name is 'map.csv' then 2 files will be produced: 'map_links.csv', 'map_movements.csv'")
	geojsonFile   = flag.String("geojson", "", "Filename of GeoJSON results. Empty value means no GeoJSON output")
	eps           = flag.Float64("eps", sltm.DEFAULT_ASSIGNMENT_EPSILON, "Relative duality gap to stop equilibration")
	iters         = flag.Int("iters", sltm.DEFAULT_ASSIGNMENT_MAX_ITERATIONS, "Max number of equilibration iterations")
	schemeStr     = flag.String("scheme", "advanced", "Loading scheme. Expected values: basic / advanced")
	containerStr  = flag.String("container", "bush", "Flow container. Expected values: bush / path")
	verbose       = flag.Bool("verbose", false, "Verbose (development) logging")
	metricsListen = flag.String("metrics", "", "Address to expose prometheus metrics on, e.g. ':9090'. Empty value disables metrics")
)

func main() {
	flag.Parse()

	logger, err := sltm.NewLogger(*verbose)
	if err != nil {
		fmt.Println(err)
		return
	}

	if *metricsListen != "" {
		if err := sltm.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
			logger.Error(err, "Can't register metrics")
			return
		}
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(*metricsListen, nil); err != nil {
				logger.Error(err, "Metrics server stopped")
			}
		}()
	}

	if err := run(logger); err != nil {
		logger.Error(err, "Assignment failed")
		os.Exit(1)
	}
}

func run(logger logr.Logger) error {
	scheme, ok := sltm.ParseSolutionScheme(*schemeStr)
	if !ok {
		return errors.Wrapf(sltm.ErrUnsupportedScheme, "Scheme '%s'", *schemeStr)
	}
	container := sltm.CONTAINER_BUSH
	switch strings.ToLower(*containerStr) {
	case "bush":
		container = sltm.CONTAINER_BUSH
	case "path":
		container = sltm.CONTAINER_PATH
	default:
		return errors.Wrapf(sltm.ErrInvalidConfigValue, "Flow container '%s'", *containerStr)
	}

	net, err := sltm.ImportFromOSMFile(*osmFileName, sltm.WithImportLogger(logger))
	if err != nil {
		return errors.Wrap(err, "Can't import network")
	}

	file, err := os.Open(*demandFile)
	if err != nil {
		return errors.Wrap(err, "Can't open demand file")
	}
	defer file.Close()
	demand, err := readDemand(net, file)
	if err != nil {
		return errors.Wrap(err, "Can't read demand")
	}

	assignment, err := sltm.NewAssignment(net, demand,
		sltm.WithEpsilon(*eps),
		sltm.WithMaxIterations(*iters),
		sltm.WithSolutionScheme(scheme),
		sltm.WithFlowContainer(container),
		sltm.WithLogger(logger),
	)
	if err != nil {
		return errors.Wrap(err, "Can't prepare assignment")
	}
	logger.V(sltm.VERBOSE).Info("Assignment prepared", "network", net.String(), "assignment", assignment.String())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if err := assignment.Execute(ctx); err != nil {
		return err
	}

	if err := assignment.ExportToCSV(*out); err != nil {
		return errors.Wrap(err, "Can't export CSV")
	}
	if *geojsonFile != "" {
		geojsonOut, err := os.Create(*geojsonFile)
		if err != nil {
			return errors.Wrap(err, "Can't create GeoJSON file")
		}
		defer geojsonOut.Close()
		if err := assignment.ExportToGeoJSON(geojsonOut); err != nil {
			return errors.Wrap(err, "Can't export GeoJSON")
		}
	}
	return nil
}

// readDemand reads demand between OSM nodes. Centroid is created for every OSM node met in the file.
func readDemand(net *sltm.Network, r io.Reader) (*sltm.Demand, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = 3
	// Skip header
	if _, err := reader.Read(); err != nil {
		return nil, errors.Wrap(err, "Can't read header")
	}
	centroids := make(map[osm.NodeID]sltm.NodeID)
	centroidOf := func(text string) (sltm.NodeID, error) {
		value, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return -1, errors.Wrapf(err, "Bad OSM node '%s'", text)
		}
		osmID := osm.NodeID(value)
		if centroid, ok := centroids[osmID]; ok {
			return centroid, nil
		}
		node, ok := net.NodeByOSM(osmID)
		if !ok {
			return -1, errors.Wrapf(sltm.ErrNodeNotFound, "OSM node %d", osmID)
		}
		centroid, err := net.AddCentroid(node)
		if err != nil {
			return -1, err
		}
		centroids[osmID] = centroid
		return centroid, nil
	}
	demand := sltm.NewDemand()
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		origin, err := centroidOf(record[0])
		if err != nil {
			return nil, err
		}
		destination, err := centroidOf(record[1])
		if err != nil {
			return nil, err
		}
		pcuHour, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "Bad demand '%s'", record[2])
		}
		if err := demand.Add(origin, destination, pcuHour); err != nil {
			return nil, err
		}
	}
	return demand, nil
}
