package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/client/client"
	"github.com/fatih/color"
)

func success(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, color.GreenString("✓")+" "+fmt.Sprintf(format, args...))
}

func hint(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, color.CyanString("→")+" "+fmt.Sprintf(format, args...))
}

func failure(w io.Writer, err error) {
	fmt.Fprintln(w, color.RedString("✗")+" "+err.Error())
}

func printObjects(w io.Writer, list []client.Object) {
	if len(list) == 0 {
		fmt.Fprintln(w, color.YellowString("no files"))
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTITLE\tVER\tVISIBILITY\tSIZE\tDOWNLOADS\tCREATED")
	for _, o := range list {
		version := strconv.Itoa(o.Version)
		if o.Superseded {
			version += "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			o.ID, o.Name, o.Title, version, o.Visibility, o.Size, o.DownloadCount,
			o.CreatedAt.Local().Format(time.DateTime))
	}
	_ = tw.Flush()
}
