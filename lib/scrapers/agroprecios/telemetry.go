package agroprecios

import (
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("scrapers/agroprecios")
