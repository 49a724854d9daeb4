package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rentroll/rentroll/pkg/policy"
	"github.com/rentroll/rentroll/pkg/property"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printAggregate(w io.Writer, agg *property.Aggregate) error {
	if jsonOutput {
		return printJSON(w, agg)
	}

	state := "latest"
	if agg.IsHistorical {
		state = "historical"
	}
	fmt.Fprintf(w, "Property:  %s\n", agg.PropertyID)
	fmt.Fprintf(w, "Version:   %s (revision %d, %s)\n", agg.Version, agg.Revision, state)
	fmt.Fprintf(w, "Address:   %s\n", agg.PropertyDetails.Address)
	if agg.PropertyDetails.PropertyName != "" {
		fmt.Fprintf(w, "Name:      %s\n", agg.PropertyDetails.PropertyName)
	}
	fmt.Fprintf(w, "Size:      %.0f sf\n", agg.PropertyDetails.BuildingSizeSf)
	fmt.Fprintf(w, "Start:     %s, hold %d years\n", agg.UnderwritingInputs.EstStartDate, agg.UnderwritingInputs.HoldPeriodYears)
	fmt.Fprintf(w, "Updated:   %s by %s\n\n", agg.UpdatedAt.Format(time.RFC3339), agg.UpdatedBy)

	tw := newTable(w)
	fmt.Fprintln(tw, "TENANT ID\tNAME\tSF\tRENT PSF\tLEASE\tTYPE\tSTATUS")
	for _, t := range agg.Tenants {
		fmt.Fprintf(tw, "%s\t%s\t%.0f\t%.2f\t%s..%s\t%s\t%s\n",
			t.ID, t.TenantName, t.SquareFeet, t.RentPsf, t.LeaseStart, t.LeaseEnd, t.LeaseType, tenantStatus(t))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	tw = newTable(w)
	fmt.Fprintln(tw, "BROKER ID\tNAME\tCOMPANY\tPHONE\tEMAIL\tSTATUS")
	for _, b := range agg.Brokers {
		status := "active"
		if b.IsDeleted {
			status = "deleted"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", b.ID, b.Name, b.Company, b.Phone, b.Email, status)
	}
	return tw.Flush()
}

func tenantStatus(t property.Tenant) string {
	switch {
	case t.IsVacant:
		return "vacant"
	case t.IsDeleted:
		return "deleted"
	default:
		return "active"
	}
}

func printVersions(w io.Writer, versions []property.VersionSummary) error {
	if jsonOutput {
		return printJSON(w, versions)
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "PROPERTY\tVERSION\tREVISION\tSTATE\tUPDATED BY\tUPDATED AT")
	for _, v := range versions {
		state := "latest"
		if v.IsHistorical {
			state = "historical"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			v.PropertyID, v.Version, v.Revision, state, v.UpdatedBy, v.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func printAudit(w io.Writer, records []property.AuditRecord) error {
	if jsonOutput {
		return printJSON(w, records)
	}

	for _, rec := range records {
		fmt.Fprintf(w, "#%d %s revision %d by %s at %s (%d changes)\n",
			rec.ID, rec.Action, rec.Revision, rec.UpdatedBy, rec.CreatedAt.Format(time.RFC3339), rec.ChangedFieldCount)
		for _, ch := range rec.Changes {
			fmt.Fprintf(w, "    %s: %v -> %v\n", ch.Field, render(ch.OldValue), render(ch.NewValue))
		}
	}
	return nil
}

// render prints nested values as compact JSON.
func render(v interface{}) string {
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	case nil:
		return "<none>"
	default:
		return fmt.Sprint(v)
	}
}

func printPolicyResult(w io.Writer, res *policy.Result) error {
	if jsonOutput {
		return printJSON(w, res)
	}

	if len(res.Violations) == 0 {
		fmt.Fprintf(w, "✓ %d policies passed\n", len(res.EvaluatedPolicies))
	}
	tw := newTable(w)
	if len(res.Violations) > 0 {
		fmt.Fprintln(tw, "POLICY\tSEVERITY\tSUBJECT\tMESSAGE")
	}
	for _, v := range res.Violations {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.Policy, v.Severity, v.Subject, v.Message)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	return nil
}
