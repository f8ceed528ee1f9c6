package agroprecios

import (
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"time"

	"agroprecios-harvester/lib/restyutil"
	"agroprecios-harvester/lib/telemetry"
	"agroprecios-harvester/lib/timezone"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

const DefaultBaseUrl = "https://www.agroprecios.com/precios-subasta-tabla.php"

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client
	delay   time.Duration
}

type ClientOptions struct {
	// defaults to DefaultBaseUrl
	BaseUrl string
	// pause before every request, defaults to a second so the source
	// never sees a burst
	Delay time.Duration
	// dumps every raw exchange to disk when set
	InstrumentOutput restyutil.InstrumentOutput
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	delay := opts.Delay
	if delay == 0 {
		delay = time.Second
	}

	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetHeader("accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	client.SetHeader("accept-language", "es-ES,es;q=0.9,en;q=0.8")
	client.SetHeader("referer", fmt.Sprintf("%s://%s/", baseUrl.Scheme, baseUrl.Host))
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 20)

	telemetry.InstrumentResty(client, "scrapers/agroprecios/http")
	restyutil.InstrumentClient(client, opts.InstrumentOutput)

	c := &Client{
		BaseUrl: baseUrl,
		Http:    client,
		delay:   delay,
	}
	return c, nil
}

// Fetch requests the price table for one (day, auction) pair and returns the
// raw HTML. any transport failure or non-2xx status is an error; the caller
// decides whether to keep going.
func (c *Client) Fetch(ctx context.Context, auctionId int, day time.Time) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "client:Fetch")
	defer span.End()

	if err := c.pace(ctx); err != nil {
		return nil, err
	}

	res, err := c.Http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"sub": fmt.Sprintf("%d", auctionId),
			"fec": timezone.FormatQueryDate(day),
			"op":  "1",
		}).
		Get(c.BaseUrl.String())
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch")
		return nil, err
	}
	if res.IsError() {
		err := fmt.Errorf("unexpected status %s", res.Status())
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return res.Body(), nil
}

func (c *Client) pace(ctx context.Context) error {
	timer := time.NewTimer(c.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
