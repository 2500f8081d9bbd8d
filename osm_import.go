package sltm

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"github.com/pkg/errors"
)

const (
	MPH_TO_KMH = 1.609344
)

type OSMFormat uint16

const (
	OSM_FORMAT_XML = OSMFormat(iota + 1)
	OSM_FORMAT_PBF
)

func (iotaIdx OSMFormat) String() string {
	return [...]string{"xml", "pbf"}[iotaIdx-1]
}

type OSMScanner interface {
	Scan() bool
	Close() error
	Err() error
	Object() osm.Object
}

type importConfig struct {
	logger         logr.Logger
	procs          int
	networkOptions []NetworkOption
}

type ImportOption func(*importConfig)

func WithImportLogger(logger logr.Logger) ImportOption {
	return func(cfg *importConfig) {
		cfg.logger = logger
	}
}

// WithImportProcs sets number of goroutines decoding PBF blocks
func WithImportProcs(procs int) ImportOption {
	return func(cfg *importConfig) {
		cfg.procs = procs
	}
}

// WithImportNetworkOptions passes options to the created network
func WithImportNetworkOptions(options ...NetworkOption) ImportOption {
	return func(cfg *importConfig) {
		cfg.networkOptions = append(cfg.networkOptions, options...)
	}
}

var (
	mphRegExp    = regexp.MustCompile(`(\d+\.?\d*)\s*mph`)
	numberRegExp = regexp.MustCompile(`\d+\.?\d*`)
)

// wayData is highway prepared for splitting into link segments
type wayData struct {
	ID            osm.WayID
	Nodes         []osm.NodeID
	linkType      LinkType
	lanes         int
	lanesForward  int
	lanesBackward int
	maxSpeed      float64
	Oneway        bool
	IsReversed    bool
}

// ImportFromOSMFile imports road network from *.osm / *.xml / *.osm.pbf file. Network is not prepared.
func ImportFromOSMFile(filename string, options ...ImportOption) (*Network, error) {
	var format OSMFormat
	switch ext := filepath.Ext(filename); ext {
	case ".osm", ".xml":
		format = OSM_FORMAT_XML
	case ".pbf":
		format = OSM_FORMAT_PBF
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "File extension '%s' for file '%s' is not handled yet", ext, filename)
	}
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open file '%s'", filename)
	}
	defer file.Close()
	return ImportFromOSM(context.Background(), file, format, options...)
}

// ImportFromOSM imports road network from OSM data. Reader is scanned twice: for ways and for nodes.
func ImportFromOSM(ctx context.Context, reader io.ReadSeeker, format OSMFormat, options ...ImportOption) (*Network, error) {
	cfg := importConfig{
		logger: logr.Discard(),
		procs:  4,
	}
	for _, option := range options {
		option(&cfg)
	}
	newScanner := func() (OSMScanner, error) {
		switch format {
		case OSM_FORMAT_XML:
			return osmxml.New(ctx, reader), nil
		case OSM_FORMAT_PBF:
			return osmpbf.New(ctx, reader, cfg.procs), nil
		default:
			return nil, errors.Wrapf(ErrUnsupportedFormat, "OSM format %d", format)
		}
	}

	/* Process ways */
	st := time.Now()
	ways := []*wayData{}
	useCount := make(map[osm.NodeID]int)
	{
		scannerWays, err := newScanner()
		if err != nil {
			return nil, err
		}
		defer scannerWays.Close()
		for scannerWays.Scan() {
			way, ok := scannerWays.Object().(*osm.Way)
			if !ok {
				continue
			}
			prepared := prepareWay(way, cfg.logger)
			if prepared == nil {
				continue
			}
			for i, nodeID := range prepared.Nodes {
				useCount[nodeID]++
				// ends of ways are always split points
				if i == 0 || i == len(prepared.Nodes)-1 {
					useCount[nodeID]++
				}
			}
			ways = append(ways, prepared)
		}
		if err := scannerWays.Err(); err != nil {
			return nil, errors.Wrap(err, "Can't scan ways")
		}
	}
	cfg.logger.V(VERBOSE).Info("Ways processed", "ways", len(ways), "elapsed", time.Since(st).String())

	// Seek to start
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "Can't repeat seeking after ways scanning")
	}

	/* Process nodes */
	st = time.Now()
	points := make(map[osm.NodeID]orb.Point, len(useCount))
	{
		scannerNodes, err := newScanner()
		if err != nil {
			return nil, err
		}
		defer scannerNodes.Close()
		for scannerNodes.Scan() {
			node, ok := scannerNodes.Object().(*osm.Node)
			if !ok {
				continue
			}
			if _, ok := useCount[node.ID]; ok {
				points[node.ID] = orb.Point{node.Lon, node.Lat}
			}
		}
		if err := scannerNodes.Err(); err != nil {
			return nil, errors.Wrap(err, "Can't scan nodes")
		}
	}
	cfg.logger.V(VERBOSE).Info("Nodes processed", "nodes", len(points), "elapsed", time.Since(st).String())

	net := NewNetwork(cfg.networkOptions...)
	for _, way := range ways {
		if err := net.addWay(way, useCount, points, cfg.logger); err != nil {
			return nil, errors.Wrapf(err, "Can't add way %d", way.ID)
		}
	}
	cfg.logger.V(VERBOSE).Info("Network imported", "nodes", net.NodesNum(), "links", net.LinksNum())
	return net, nil
}

// prepareWay returns nil for ways which are not part of road network
func prepareWay(way *osm.Way, logger logr.Logger) *wayData {
	highway := getHighwayType(way.Tags.Find("highway"))
	if highway == 0 || len(way.Nodes) < 2 {
		return nil
	}
	if way.Tags.Find("area") == "yes" {
		return nil
	}
	for _, tag := range []string{"access", "motor_vehicle", "motorcar"} {
		if _, restricted := restrictedAccess[way.Tags.Find(tag)]; restricted {
			return nil
		}
	}
	prepared := &wayData{
		ID:            way.ID,
		Nodes:         make([]osm.NodeID, 0, len(way.Nodes)),
		linkType:      highway.LinkType(),
		lanes:         parseLanes(way.Tags.Find("lanes")),
		lanesForward:  parseLanes(way.Tags.Find("lanes:forward")),
		lanesBackward: parseLanes(way.Tags.Find("lanes:backward")),
		maxSpeed:      parseMaxSpeed(way.Tags.Find("maxspeed")),
	}
	for _, node := range way.Nodes {
		prepared.Nodes = append(prepared.Nodes, node.ID)
	}
	onewayText := way.Tags.Find("oneway")
	switch onewayText {
	case "yes", "1", "true":
		prepared.Oneway = true
	case "no", "0", "false":
		prepared.Oneway = false
	case "-1":
		prepared.Oneway = true
		prepared.IsReversed = true
	case "":
		if _, ok := junctionTypes[way.Tags.Find("junction")]; ok {
			prepared.Oneway = true
		} else {
			prepared.Oneway = onewayDefaultByLink[prepared.linkType]
		}
	default:
		// Reversible or alternating depend on time conditions: treat as two-way
		if _, found := onewayReversible[onewayText]; !found {
			logger.Info("[WARNING] Unhandled `oneway` tag value has been met", "value", onewayText, "way", way.ID)
		}
	}
	return prepared
}

func parseLanes(text string) int {
	if text == "" {
		return -1
	}
	lanes, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || lanes <= 0 {
		return -1
	}
	return lanes
}

// parseMaxSpeed returns speed in km/h or -1 when tag can't be interpreted
func parseMaxSpeed(text string) float64 {
	if text == "" {
		return -1
	}
	if match := mphRegExp.FindStringSubmatch(text); len(match) == 2 {
		value, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			return -1
		}
		return value * MPH_TO_KMH
	}
	number := numberRegExp.FindString(text)
	if number == "" {
		return -1
	}
	value, err := strconv.ParseFloat(number, 64)
	if err != nil || value <= 0 {
		return -1
	}
	return value
}

// directionLanes returns lanes of forward and backward direction
func (way *wayData) directionLanes() (int, int) {
	if way.Oneway {
		if way.lanesForward > 0 && !way.IsReversed {
			return way.lanesForward, -1
		}
		return way.lanes, -1
	}
	forward, backward := way.lanesForward, way.lanesBackward
	if way.lanes > 0 {
		half := way.lanes / 2
		if half < 1 {
			half = 1
		}
		if forward <= 0 {
			forward = half
		}
		if backward <= 0 {
			backward = half
		}
	}
	return forward, backward
}

// addWay splits way at shared nodes and adds link segments for every allowed direction
func (net *Network) addWay(way *wayData, useCount map[osm.NodeID]int, points map[osm.NodeID]orb.Point, logger logr.Logger) error {
	forwardLanes, backwardLanes := way.directionLanes()
	segmentStart := 0
	for i := 1; i < len(way.Nodes); i++ {
		if useCount[way.Nodes[i]] < 2 && i != len(way.Nodes)-1 {
			continue
		}
		segment := way.Nodes[segmentStart : i+1]
		segmentStart = i
		geom := make(orb.LineString, 0, len(segment))
		complete := true
		for _, nodeID := range segment {
			pt, ok := points[nodeID]
			if !ok {
				complete = false
				break
			}
			geom = append(geom, pt)
		}
		if !complete {
			logger.V(DEBUG).Info("Segment references missing node, skip it", "way", way.ID)
			continue
		}
		sourceOSM, targetOSM := segment[0], segment[len(segment)-1]
		if sourceOSM == targetOSM {
			continue
		}
		source, err := net.addOSMNode(sourceOSM, points[sourceOSM])
		if err != nil {
			return err
		}
		target, err := net.addOSMNode(targetOSM, points[targetOSM])
		if err != nil {
			return err
		}
		options := []LinkOption{withOSMWay(way.ID, !way.Oneway)}
		if way.maxSpeed > 0 {
			options = append(options, WithMaxSpeed(way.maxSpeed))
		}
		if !way.Oneway || !way.IsReversed {
			if _, err := net.AddLink(source, target, way.linkType, forwardLanes, append(options, WithGeometry(geom))...); err != nil {
				return err
			}
		}
		if !way.Oneway || way.IsReversed {
			reversed := geom.Clone()
			reversed.Reverse()
			if _, err := net.AddLink(target, source, way.linkType, backwardLanes, append(options, WithGeometry(reversed))...); err != nil {
				return err
			}
		}
	}
	return nil
}
