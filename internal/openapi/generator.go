package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// GenerateSpec generates the OpenAPI 3.1 document for the gateway API.
// The endpoint surface is fixed, so the document is built statically rather
// than reflected from handlers.
func GenerateSpec(baseURL, version string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "QuoteGate API",
			Description: "Authenticated gateway for crypto market data.",
			Version:     version,
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["apiKey"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type: "apiKey",
			In:   "header",
			Name: "X-API-Key",
		},
	}
	doc.Components.SecuritySchemes["sessionToken"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type: "apiKey",
			In:   "header",
			Name: "X-Session-Token",
		},
	}
	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:   "http",
			Scheme: "bearer",
		},
	}

	doc.Security = openapi3.SecurityRequirements{
		{"apiKey": {}},
		{"sessionToken": {}},
		{"bearerAuth": {}},
	}

	doc.Paths = openapi3.NewPaths()

	doc.Components.Schemas["ErrorResponse"] = errorResponseSchema()
	doc.Components.Schemas["User"] = userSchema()
	doc.Components.Schemas["Session"] = sessionSchema()
	doc.Components.Schemas["Market"] = marketSchema()
	doc.Components.Schemas["Symbol"] = symbolSchema()
	doc.Components.Schemas["Candle"] = candleSchema()

	addAuthPaths(doc)
	addAccountPaths(doc)
	addMarketPaths(doc)

	return doc
}

func addAuthPaths(doc *openapi3.T) {
	registerReq := objectSchema(openapi3.Schemas{
		"username": stringProp("Unique account name."),
		"email":    stringProp("Optional contact address."),
		"password": stringProp("Plaintext password, hashed at rest."),
	})
	registerReq.Value.Required = []string{"username", "password"}

	registerResp := objectSchema(openapi3.Schemas{
		"user":          openapi3.NewSchemaRef("#/components/schemas/User", nil),
		"api_key":       stringProp("The raw API key. Shown only once."),
		"session_token": stringProp("The raw session token. Shown only once."),
	})

	doc.Paths.Set("/api/v1/auth/register", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"auth"},
			Summary:     "Register a new account",
			Description: "Create an account and receive its API key and an initial session token. Both secrets are returned exactly once.",
			OperationID: "register",
			Security:    openapi3.NewSecurityRequirements(),
			RequestBody: jsonBody("Account details", registerReq, true),
			Responses:   newResponses("201", "Account created", registerResp),
		},
	})

	loginReq := objectSchema(openapi3.Schemas{
		"username": stringProp("Account name."),
		"password": stringProp("Account password."),
	})
	loginReq.Value.Required = []string{"username", "password"}

	loginResp := objectSchema(openapi3.Schemas{
		"user":          openapi3.NewSchemaRef("#/components/schemas/User", nil),
		"session_token": stringProp("The raw session token for this login."),
		"expires_at":    timeProp("When the session expires."),
	})

	doc.Paths.Set("/api/v1/auth/login", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"auth"},
			Summary:     "Log in with username and password",
			OperationID: "login",
			Security:    openapi3.NewSecurityRequirements(),
			RequestBody: jsonBody("Credentials", loginReq, true),
			Responses:   newResponses("200", "Session created", loginResp),
		},
	})

	doc.Paths.Set("/api/v1/auth/logout", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"auth"},
			Summary:     "Invalidate the current session token",
			OperationID: "logout",
			Responses: newResponses("200", "Session invalidated", objectSchema(openapi3.Schemas{
				"message": stringProp("Confirmation message."),
			})),
		},
	})

	doc.Paths.Set("/api/v1/auth/verify", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"auth"},
			Summary:     "Verify the presented credential",
			Description: "Accepts an API key or a session token and reports the authenticated identity.",
			OperationID: "verify",
			Responses: newResponses("200", "Credential is valid", objectSchema(openapi3.Schemas{
				"user_id":  intProp("Authenticated account ID."),
				"username": stringProp("Authenticated account name."),
			})),
		},
	})

	doc.Paths.Set("/api/v1/auth/keys/rotate", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"auth"},
			Summary:     "Rotate the account API key",
			Description: "Replaces the API key. The old key stops working immediately.",
			OperationID: "rotate_api_key",
			Responses: newResponses("200", "Key rotated", objectSchema(openapi3.Schemas{
				"api_key": stringProp("The new raw API key. Shown only once."),
			})),
		},
	})
}

func addAccountPaths(doc *openapi3.T) {
	meResp := objectSchema(openapi3.Schemas{
		"user":    openapi3.NewSchemaRef("#/components/schemas/User", nil),
		"session": openapi3.NewSchemaRef("#/components/schemas/Session", nil),
	})

	doc.Paths.Set("/api/v1/me", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"account"},
			Summary:     "Get the authenticated account",
			OperationID: "me",
			Responses:   newResponses("200", "Account details", meResp),
		},
	})
}

func addMarketPaths(doc *openapi3.T) {
	marketsResp := listSchema("#/components/schemas/Market")

	doc.Paths.Set("/api/v1/markets", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"markets"},
			Summary:     "List available markets",
			OperationID: "list_markets",
			Responses:   newResponses("200", "Registered markets", marketsResp),
		},
	})

	marketParam := &openapi3.ParameterRef{
		Value: openapi3.NewPathParameter("market").
			WithDescription("Market identifier (e.g. \"binance\").").
			WithSchema(openapi3.NewStringSchema()),
	}

	doc.Paths.Set("/api/v1/markets/{market}/symbols", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"markets"},
			Summary:     "List symbols for a market",
			OperationID: "list_symbols",
			Parameters:  openapi3.Parameters{marketParam},
			Responses:   newResponses("200", "Supported symbols", listSchema("#/components/schemas/Symbol")),
		},
	})

	candleParams := openapi3.Parameters{
		marketParam,
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("symbol").
				WithDescription("Trading pair symbol (e.g. \"BTCUSDT\").").
				WithSchema(openapi3.NewStringSchema()),
		},
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("interval").
				WithDescription("Candle interval: 1m, 5m, 15m, 30m, 1h, 4h, 1d.").
				WithSchema(openapi3.NewStringSchema()),
		},
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("limit").
				WithDescription("Maximum number of candles to return (default 100, max 500).").
				WithSchema(&openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}),
		},
	}

	doc.Paths.Set("/api/v1/markets/{market}/candles", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"markets"},
			Summary:     "Get OHLCV candles",
			OperationID: "get_candles",
			Parameters:  candleParams,
			Responses:   newResponses("200", "Candle series, most recent last", listSchema("#/components/schemas/Candle")),
		},
	})
}

// ─── Schema Builders ────────────────────────────────────────────────────────

func userSchema() *openapi3.SchemaRef {
	return objectSchema(openapi3.Schemas{
		"id":             intProp("Account ID."),
		"username":       stringProp("Account name."),
		"email":          stringProp("Contact address, if set."),
		"key_prefix":     stringProp("First characters of the API key, for display."),
		"is_active":      boolProp("Whether the account may authenticate."),
		"total_requests": intProp("Authenticated requests served for this account."),
		"last_login_at":  timeProp("Last successful password login."),
		"created_at":     timeProp("Account creation time."),
	})
}

func sessionSchema() *openapi3.SchemaRef {
	return objectSchema(openapi3.Schemas{
		"id":            intProp("Session ID."),
		"token_prefix":  stringProp("First characters of the session token, for display."),
		"last_activity": timeProp("Last verified request on this session."),
		"expires_at":    timeProp("When the session expires."),
		"is_active":     boolProp("Whether the session is live."),
	})
}

func marketSchema() *openapi3.SchemaRef {
	return objectSchema(openapi3.Schemas{
		"id":     stringProp("Market identifier."),
		"name":   stringProp("Market name."),
		"label":  stringProp("Display label."),
		"url":    stringProp("Market home page."),
		"active": boolProp("Whether the market is serving data."),
	})
}

func symbolSchema() *openapi3.SchemaRef {
	return objectSchema(openapi3.Schemas{
		"symbol":      stringProp("Trading pair symbol."),
		"name":        stringProp("Human readable pair name."),
		"base_asset":  stringProp("Base asset code."),
		"quote_asset": stringProp("Quote asset code."),
		"type":        stringProp("Instrument type."),
	})
}

func candleSchema() *openapi3.SchemaRef {
	return objectSchema(openapi3.Schemas{
		"open_time":  int64Prop("Candle open time, epoch milliseconds."),
		"open":       numberProp("Open price."),
		"high":       numberProp("High price."),
		"low":        numberProp("Low price."),
		"close":      numberProp("Close price."),
		"volume":     numberProp("Base asset volume."),
		"close_time": int64Prop("Candle close time, epoch milliseconds."),
	})
}

func errorResponseSchema() *openapi3.SchemaRef {
	return objectSchema(openapi3.Schemas{
		"error": objectSchema(openapi3.Schemas{
			"code":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
			"message": stringProp(""),
			"context": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
		}),
	})
}

func listSchema(itemRef string) *openapi3.SchemaRef {
	return objectSchema(openapi3.Schemas{
		"resource": &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:  &openapi3.Types{"array"},
				Items: openapi3.NewSchemaRef(itemRef, nil),
			},
		},
		"meta": objectSchema(openapi3.Schemas{
			"count":   int64Prop("Number of records returned."),
			"took_ms": int64Prop("Server-side processing time in milliseconds."),
		}),
	})
}

func objectSchema(props openapi3.Schemas) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:       &openapi3.Types{"object"},
			Properties: props,
		},
	}
}

func stringProp(desc string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Description: desc}}
}

func boolProp(desc string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}, Description: desc}}
}

func intProp(desc string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Description: desc}}
}

func int64Prop(desc string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64", Description: desc}}
}

func numberProp(desc string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"number"}, Format: "double", Description: desc}}
}

func timeProp(desc string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time", Description: desc}}
}

func jsonBody(desc string, schema *openapi3.SchemaRef, required bool) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Description: desc,
			Required:    required,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	}
}

// newResponses builds a Responses map with a success response and standard
// error responses.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponses()

	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	})

	errorRef := openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil)

	badReqDesc := "Bad request"
	responses.Set("400", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &badReqDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
		},
	})

	unauthDesc := "Unauthorized"
	responses.Set("401", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &unauthDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
		},
	})

	notFoundDesc := "Not found"
	responses.Set("404", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &notFoundDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
		},
	})

	serverErrDesc := "Internal server error"
	responses.Set("500", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &serverErrDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
		},
	})

	return responses
}
