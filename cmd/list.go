package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"hudebug/pkg/serial"
)

var (
	listDetails bool
	listFormat  string

	// listPorts is replaced in tests.
	listPorts = serial.DetailedPorts
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available serial ports",
	Long: `List all available serial ports on the system.

On different platforms:
  - Windows: Lists COM ports
  - Linux: Lists /dev/tty* devices
  - macOS: Lists /dev/cu.* and /dev/tty.* devices`,
	Aliases: []string{"ls", "ports"},
	Args:    cobra.NoArgs,
	RunE:    runList,
}

func init() {
	listCmd.Flags().BoolVarP(&listDetails, "details", "d", false, "show USB details")
	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "output format (table, csv)")
}

func runList(cmd *cobra.Command, _ []string) error {
	portInfos, err := listPorts()
	if err != nil {
		return fmt.Errorf("failed to list ports: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(portInfos) == 0 {
		fmt.Fprintln(out, "No serial ports found.")
		return nil
	}

	switch listFormat {
	case "csv":
		if err := printPortsCSV(out, portInfos); err != nil {
			return fmt.Errorf("failed to write csv: %w", err)
		}
	case "table":
		printPortsTable(out, portInfos)
	default:
		return fmt.Errorf("unknown format: %s", listFormat)
	}
	return nil
}

func printPortsTable(out io.Writer, portInfos []serial.PortInfo) {
	fmt.Fprintf(out, "Found %d serial port(s):\n", len(portInfos))

	if !listDetails {
		for _, p := range portInfos {
			fmt.Fprintf(out, "  %s\n", p.Name)
		}
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  PORT\tUSB\tVID:PID\tPRODUCT\tSERIAL")
		for _, p := range portInfos {
			ids := ""
			if p.IsUSB {
				ids = p.VID + ":" + p.PID
			}
			fmt.Fprintf(w, "  %s\t%t\t%s\t%s\t%s\n", p.Name, p.IsUSB, ids, p.Product, p.SerialNumber)
		}
		_ = w.Flush()
	}

	fmt.Fprintln(out, "\nSet serial_port in the config or use 'hudebug run 1 --port <port>'.")
}

// portRow is one line of the CSV listing.
type portRow struct {
	Port         string `csv:"port"`
	IsUSB        bool   `csv:"is_usb"`
	VID          string `csv:"vid"`
	PID          string `csv:"pid"`
	Product      string `csv:"product"`
	SerialNumber string `csv:"serial_number"`
}

type portNameRow struct {
	Port string `csv:"port"`
}

func printPortsCSV(out io.Writer, portInfos []serial.PortInfo) error {
	if !listDetails {
		rows := make([]portNameRow, 0, len(portInfos))
		for _, p := range portInfos {
			rows = append(rows, portNameRow{Port: p.Name})
		}
		return gocsv.Marshal(rows, out)
	}

	rows := make([]portRow, 0, len(portInfos))
	for _, p := range portInfos {
		rows = append(rows, portRow{
			Port:         p.Name,
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			Product:      p.Product,
			SerialNumber: p.SerialNumber,
		})
	}
	return gocsv.Marshal(rows, out)
}
