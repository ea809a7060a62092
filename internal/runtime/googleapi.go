// Package runtime adapts the Google API services to the narrow client
// interfaces used by gscreport.
package runtime

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	analyticsadmin "google.golang.org/api/analyticsadmin/v1beta"
	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	gsc "google.golang.org/api/searchconsole/v1"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/joshsymonds/gscreport/internal/analytics"
	"github.com/joshsymonds/gscreport/internal/report"
	"github.com/joshsymonds/gscreport/internal/searchconsole"
	"github.com/joshsymonds/gscreport/internal/sheets"
	"github.com/joshsymonds/gscreport/internal/window"
)

const (
	valueInputOption   = "USER_ENTERED"
	propertyPageSize   = 200
	spreadsheetURLBase = "https://docs.google.com/spreadsheets/d/"
	sessionsMetric     = "sessions"
)

// Services bundles the Google API services sharing one authorized client.
type Services struct {
	SearchConsole  *gsc.Service
	Sheets         *gsheets.Service
	Drive          *drive.Service
	AnalyticsData  *analyticsdata.Service
	AnalyticsAdmin *analyticsadmin.Service
}

// NewServices builds every service on top of client.
func NewServices(ctx context.Context, client *http.Client) (*Services, error) {
	opt := option.WithHTTPClient(client)
	scSvc, err := gsc.NewService(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("create search console service: %w", err)
	}
	sheetsSvc, err := gsheets.NewService(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	driveSvc, err := drive.NewService(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	dataSvc, err := analyticsdata.NewService(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("create analytics data service: %w", err)
	}
	adminSvc, err := analyticsadmin.NewService(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("create analytics admin service: %w", err)
	}
	return &Services{
		SearchConsole:  scSvc,
		Sheets:         sheetsSvc,
		Drive:          driveSvc,
		AnalyticsData:  dataSvc,
		AnalyticsAdmin: adminSvc,
	}, nil
}

// SearchConsoleClient adapts the Search Console API.
func (s *Services) SearchConsoleClient() searchconsole.Client {
	return &searchConsoleClient{svc: s.SearchConsole}
}

// SheetsClient adapts the Sheets and Drive APIs.
func (s *Services) SheetsClient() sheets.Client {
	return &sheetsClient{sheets: s.Sheets, drive: s.Drive}
}

// AnalyticsClient adapts the GA4 Data and Admin APIs.
func (s *Services) AnalyticsClient() analytics.Client {
	return &analyticsClient{data: s.AnalyticsData, admin: s.AnalyticsAdmin}
}

type searchConsoleClient struct{ svc *gsc.Service }

func (c *searchConsoleClient) Query(ctx context.Context, site string, q searchconsole.Query) ([]searchconsole.Row, error) {
	resp, err := c.svc.Searchanalytics.Query(site, queryRequest(q)).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return convertRows(resp.Rows), nil
}

func (c *searchConsoleClient) ListSites(ctx context.Context) ([]searchconsole.Site, error) {
	resp, err := c.svc.Sites.List().Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	sites := make([]searchconsole.Site, 0, len(resp.SiteEntry))
	for _, s := range resp.SiteEntry {
		sites = append(sites, searchconsole.Site{URL: s.SiteUrl, Permission: s.PermissionLevel})
	}
	return sites, nil
}

func queryRequest(q searchconsole.Query) *gsc.SearchAnalyticsQueryRequest {
	req := &gsc.SearchAnalyticsQueryRequest{
		StartDate: q.Start.Format(window.DateLayout),
		EndDate:   q.End.Format(window.DateLayout),
		Type:      string(q.Type),
		DataState: q.DataState,
		RowLimit:  int64(q.RowLimit),
		StartRow:  int64(q.StartRow),
	}
	for _, d := range q.Dimensions {
		req.Dimensions = append(req.Dimensions, string(d))
	}
	if len(q.Filters) > 0 {
		group := &gsc.ApiDimensionFilterGroup{GroupType: "and"}
		for _, f := range q.Filters {
			group.Filters = append(group.Filters, &gsc.ApiDimensionFilter{
				Dimension:  string(f.Dimension),
				Operator:   string(f.Operator),
				Expression: f.Expression,
			})
		}
		req.DimensionFilterGroups = []*gsc.ApiDimensionFilterGroup{group}
	}
	return req
}

func convertRows(in []*gsc.ApiDataRow) []searchconsole.Row {
	out := make([]searchconsole.Row, 0, len(in))
	for _, r := range in {
		if r == nil {
			continue
		}
		out = append(out, searchconsole.Row{
			Keys:        r.Keys,
			Clicks:      int64(r.Clicks),
			Impressions: int64(r.Impressions),
			CTR:         r.Ctr,
			Position:    r.Position,
		})
	}
	return out
}

type sheetsClient struct {
	sheets *gsheets.Service
	drive  *drive.Service
}

func (c *sheetsClient) CopyTemplate(ctx context.Context, templateID, title, folderID string) (report.Document, error) {
	file := &drive.File{Name: title}
	if folderID != "" {
		file.Parents = []string{folderID}
	}
	copied, err := c.drive.Files.Copy(templateID, file).
		SupportsAllDrives(true).
		Fields("id", "name", "webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return report.Document{}, err
	}
	url := copied.WebViewLink
	if url == "" {
		url = spreadsheetURLBase + copied.Id
	}
	return report.Document{ID: copied.Id, Name: copied.Name, URL: url}, nil
}

func (c *sheetsClient) EnsureTab(ctx context.Context, spreadsheetID, tab string) error {
	ss, err := c.sheets.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return err
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == tab {
			return nil
		}
	}
	req := &gsheets.BatchUpdateSpreadsheetRequest{Requests: []*gsheets.Request{{
		AddSheet: &gsheets.AddSheetRequest{Properties: &gsheets.SheetProperties{Title: tab}},
	}}}
	if _, err := c.sheets.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %q: %w", tab, err)
	}
	return nil
}

func (c *sheetsClient) ReplaceValues(ctx context.Context, spreadsheetID, tab string, values [][]any) error {
	if _, err := c.sheets.Spreadsheets.Values.Clear(spreadsheetID, sheets.A1(tab, ""), &gsheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %q: %w", tab, err)
	}
	if len(values) == 0 {
		return nil
	}
	_, err := c.sheets.Spreadsheets.Values.Update(spreadsheetID, sheets.A1(tab, "A1"), &gsheets.ValueRange{Values: values}).
		ValueInputOption(valueInputOption).
		Context(ctx).
		Do()
	return err
}

func (c *sheetsClient) AppendValues(ctx context.Context, spreadsheetID, tab string, values [][]any) error {
	_, err := c.sheets.Spreadsheets.Values.Append(spreadsheetID, sheets.A1(tab, "A1"), &gsheets.ValueRange{Values: values}).
		ValueInputOption(valueInputOption).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

func (c *sheetsClient) ReadValues(ctx context.Context, spreadsheetID, tab, cells string) ([][]any, error) {
	resp, err := c.sheets.Spreadsheets.Values.Get(spreadsheetID, sheets.A1(tab, cells)).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (c *sheetsClient) Share(ctx context.Context, fileID, email, role string) error {
	perm := &drive.Permission{Type: "user", Role: role, EmailAddress: email}
	_, err := c.drive.Permissions.Create(fileID, perm).
		SendNotificationEmail(false).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	return err
}

type analyticsClient struct {
	data  *analyticsdata.Service
	admin *analyticsadmin.Service
}

func (c *analyticsClient) SessionTotal(ctx context.Context, property string, r window.Range) (int64, error) {
	req := &analyticsdata.RunReportRequest{
		DateRanges: []*analyticsdata.DateRange{{
			StartDate: r.Start.Format(window.DateLayout),
			EndDate:   r.End.Format(window.DateLayout),
		}},
		Metrics: []*analyticsdata.Metric{{Name: sessionsMetric}},
	}
	resp, err := c.data.Properties.RunReport(property, req).Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	return sessionTotal(resp)
}

func sessionTotal(resp *analyticsdata.RunReportResponse) (int64, error) {
	if resp == nil || len(resp.Rows) == 0 || len(resp.Rows[0].MetricValues) == 0 {
		return 0, nil
	}
	total, err := strconv.ParseInt(resp.Rows[0].MetricValues[0].Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse sessions %q: %w", resp.Rows[0].MetricValues[0].Value, err)
	}
	return total, nil
}

func (c *analyticsClient) ListProperties(ctx context.Context) ([]analytics.Property, error) {
	var props []analytics.Property
	err := c.admin.AccountSummaries.List().PageSize(propertyPageSize).Pages(ctx,
		func(page *analyticsadmin.GoogleAnalyticsAdminV1betaListAccountSummariesResponse) error {
			for _, acct := range page.AccountSummaries {
				for _, p := range acct.PropertySummaries {
					props = append(props, analytics.Property{
						ID:          p.Property,
						DisplayName: p.DisplayName,
						Account:     acct.DisplayName,
					})
				}
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	return props, nil
}

var (
	_ searchconsole.Client = (*searchConsoleClient)(nil)
	_ sheets.Client        = (*sheetsClient)(nil)
	_ analytics.Client     = (*analyticsClient)(nil)
)
