// Command analyze runs read-only reports against a collected observation
// database and prints them as aligned text tables.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/davecgh/go-spew/spew"
	"transitpulse.dev/internal/analytics"
	"transitpulse.dev/internal/appconf"
	"transitpulse.dev/transitdb"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "analyze: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := flag.NewFlagSet("analyze", flag.ContinueOnError)
	dbPath := flags.String("db", "transit_data.db", "path to the observation database")
	report := flags.String("report", "", "report to run: hourly, routes, speed, stationary, nearby, track, counts")
	limit := flags.Int64("limit", 0, "row limit for the routes and stationary reports (0 uses the default)")
	lat := flags.Float64("lat", 28.7041, "latitude for the nearby report")
	lon := flags.Float64("lon", 77.1025, "longitude for the nearby report")
	radius := flags.Float64("radius", 1000, "search radius in meters for the nearby report")
	vehicleID := flags.String("vehicle", "", "vehicle id for the track report")
	verbose := flags.Bool("v", false, "dump raw report rows")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *report == "" {
		flags.Usage()
		return fmt.Errorf("no report selected")
	}

	client, err := transitdb.NewClient(transitdb.NewConfig(*dbPath, appconf.Development, *verbose))
	if err != nil {
		return fmt.Errorf("opening database %s: %w", *dbPath, err)
	}
	defer func() { _ = client.Close() }()

	engine := analytics.NewEngine(client)
	ctx := context.Background()
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)

	switch *report {
	case "hourly":
		rows, err := engine.HourlyActivity(ctx)
		if err != nil {
			return err
		}
		dumpIfVerbose(*verbose, rows)
		fmt.Fprintln(w, "HOUR\tACTIVE VEHICLES")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%d\n", r.HourOfDay, r.ActiveVehicles)
		}

	case "routes":
		rows, err := engine.RouteRanking(ctx, *limit)
		if err != nil {
			return err
		}
		dumpIfVerbose(*verbose, rows)
		fmt.Fprintln(w, "ROUTE\tUNIQUE VEHICLES")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%d\n", r.RouteID, r.UniqueVehicleCount)
		}

	case "speed":
		rows, err := engine.SpeedByCondition(ctx)
		if err != nil {
			return err
		}
		dumpIfVerbose(*verbose, rows)
		fmt.Fprintln(w, "CONDITION\tAVG SPEED (m/s)\tSAMPLES")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%.2f\t%d\n", r.Condition, r.AverageSpeed, r.DataPoints)
		}

	case "stationary":
		rows, err := engine.StationaryVehicles(ctx, *limit)
		if err != nil {
			return err
		}
		dumpIfVerbose(*verbose, rows)
		fmt.Fprintln(w, "VEHICLE\tLATITUDE\tLONGITUDE\tOBSERVED AT")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%.6f\t%.6f\t%s\n", r.VehicleID, r.Latitude, r.Longitude, r.ObservedAt)
		}

	case "nearby":
		rows, err := engine.ActiveVehiclesNear(ctx, *lat, *lon, *radius)
		if err != nil {
			return err
		}
		dumpIfVerbose(*verbose, rows)
		fmt.Fprintln(w, "VEHICLE\tROUTE\tDISTANCE (m)\tOBSERVED AT")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%s\t%.0f\t%s\n",
				r.Position.VehicleID, r.Position.RouteID.String, r.DistanceMeters, r.Position.ObservedAt)
		}

	case "track":
		if *vehicleID == "" {
			return fmt.Errorf("the track report requires -vehicle")
		}
		track, err := engine.VehicleTrack(ctx, *vehicleID)
		if err != nil {
			return err
		}
		dumpIfVerbose(*verbose, track)
		fmt.Fprintf(w, "vehicle %s: %d points\n", track.VehicleID, len(track.Points))
		fmt.Fprintf(w, "polyline: %s\n", track.EncodedPolyline)

	case "counts":
		counts, err := client.TableCounts()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "TABLE\tROWS")
		for name, count := range counts {
			fmt.Fprintf(w, "%s\t%d\n", name, count)
		}

	default:
		return fmt.Errorf("unknown report %q", *report)
	}

	return w.Flush()
}

func dumpIfVerbose(verbose bool, v interface{}) {
	if verbose {
		spew.Fdump(os.Stderr, v)
	}
}
