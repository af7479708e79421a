// Package mpesa receives Daraja C2B payment callbacks.
//
// Safaricom calls the validation URL before completing a PayBill payment and the
// confirmation URL once the money has moved. Both carry the same JSON body.
package mpesa

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/feeallocator/internal/models"
)

// Daraja result codes.
const (
	ResultAccepted       = "0"
	ResultInvalidAccount = "C2B00012"
	ResultInvalidAmount  = "C2B00013"
	ResultInvalidShort   = "C2B00015"
	ResultOtherError     = "C2B00016"
)

// transTimeLayout is the TransTime format, in East Africa Time.
const transTimeLayout = "20060102150405"

var eat = time.FixedZone("EAT", 3*60*60)

// ErrInvalidAmount is returned for a TransAmount that is not a whole, non-negative number
// within int64 range.
var ErrInvalidAmount = errors.New("amount must be a whole non-negative number")

// C2BRequest is the body of a validation or confirmation callback.
type C2BRequest struct {
	TransactionType   string `json:"TransactionType"`
	TransID           string `json:"TransID"`
	TransTime         string `json:"TransTime"`
	TransAmount       string `json:"TransAmount"`
	BusinessShortCode string `json:"BusinessShortCode"`
	BillRefNumber     string `json:"BillRefNumber"`
	InvoiceNumber     string `json:"InvoiceNumber"`
	OrgAccountBalance string `json:"OrgAccountBalance"`
	ThirdPartyTransID string `json:"ThirdPartyTransID"`
	MSISDN            string `json:"MSISDN"`
	FirstName         string `json:"FirstName"`
	MiddleName        string `json:"MiddleName"`
	LastName          string `json:"LastName"`
}

// C2BResponse is the acknowledgement Daraja expects.
type C2BResponse struct {
	ResultCode string `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// ParseAmount reads TransAmount ("1500", "1500.00") as whole currency units.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() || !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s", ErrInvalidAmount, d.String())
	}
	if !d.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: %s out of range", ErrInvalidAmount, d.String())
	}
	return d.IntPart(), nil
}

// ParseTransTime reads TransTime as a Unix timestamp. Blank or malformed values yield zero.
func ParseTransTime(s string) int64 {
	t, err := time.ParseInLocation(transTimeLayout, strings.TrimSpace(s), eat)
	if err != nil {
		return 0
	}
	return t.Unix()
}

// PayerName joins the payer's name parts.
func (r *C2BRequest) PayerName() string {
	return strings.Join(strings.Fields(strings.Join([]string{r.FirstName, r.MiddleName, r.LastName}, " ")), " ")
}

// PaymentRequest converts a confirmed callback into a payment request.
func (r *C2BRequest) PaymentRequest() (models.PaymentRequest, error) {
	amount, err := ParseAmount(r.TransAmount)
	if err != nil {
		return models.PaymentRequest{}, err
	}
	return models.PaymentRequest{
		PaymentID:  strings.TrimSpace(r.TransID),
		Amount:     amount,
		Reference:  r.BillRefNumber,
		MSISDN:     r.MSISDN,
		PayerName:  r.PayerName(),
		ReceivedAt: ParseTransTime(r.TransTime),
	}, nil
}
