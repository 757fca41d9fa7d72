package erpnext

import (
	"context"
	"fmt"
	"geohost/internal/integrations"
	"geohost/internal/types"
	"github.com/pkg/errors"
	"net/http"
	"net/url"
)

const salesOrderDoctype = "Sales Order"

// Client pushes sales order progress to the ERP.
type Client interface {
	AddComment(ctx context.Context, author types.User, erpCode, comment string) error
	UpdateSalesOrderStatus(ctx context.Context, erpCode string, status types.SalesOrderStatus) error
}

type client struct {
	http integrations.HttpClient
}

func New(baseURL, apiKey, apiSecret string) Client {
	auth := integrations.Header{Key: "Authorization", Value: fmt.Sprintf("token %s:%s", apiKey, apiSecret)}
	return &client{http: integrations.NewHttpClient(baseURL, auth)}
}

func (c *client) AddComment(ctx context.Context, author types.User, erpCode, comment string) error {
	body := map[string]string{
		"reference_doctype": salesOrderDoctype,
		"reference_name":    erpCode,
		"content":           comment,
		"comment_email":     author.Email,
		"comment_by":        author.FullName(),
	}
	err := c.http.Do(ctx, http.MethodPost, "/api/method/frappe.desk.form.utils.add_comment", body, nil)
	return errors.Wrapf(err, "failed to comment on sales order %s", erpCode)
}

func (c *client) UpdateSalesOrderStatus(ctx context.Context, erpCode string, status types.SalesOrderStatus) error {
	billingStatus, erpStatus, perBilled := status.ErpStatus()
	body := map[string]interface{}{
		"billing_status": billingStatus,
		"status":         erpStatus,
		"per_billed":     perBilled,
	}
	path := fmt.Sprintf("/api/resource/%s/%s", url.PathEscape(salesOrderDoctype), url.PathEscape(erpCode))
	err := c.http.Do(ctx, http.MethodPut, path, body, nil)
	return errors.Wrapf(err, "failed to update sales order %s", erpCode)
}

type noop struct{}

// NewNoop is used when no ERP is configured.
func NewNoop() Client {
	return noop{}
}

func (noop) AddComment(context.Context, types.User, string, string) error {
	return nil
}

func (noop) UpdateSalesOrderStatus(context.Context, string, types.SalesOrderStatus) error {
	return nil
}
