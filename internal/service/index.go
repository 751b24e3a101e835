package service

type endpoint struct {
	Method      string `json:"method"`
	URL         string `json:"url"`
	Auth        string `json:"auth"`
	Description string `json:"description"`
}

type indexResponse struct {
	Message        string              `json:"message"`
	Version        string              `json:"version"`
	Authentication string              `json:"authentication"`
	Endpoints      map[string]endpoint `json:"endpoints"`
}

var apiDescription = indexResponse{
	Message:        "Coffee Shop API",
	Version:        "1.0",
	Authentication: "JWT Bearer Token",
	Endpoints: map[string]endpoint{
		"register":     {Method: "POST", URL: "/auth/register", Auth: "none", Description: "Register a new user"},
		"login":        {Method: "POST", URL: "/auth/login", Auth: "none", Description: "Obtain an access token"},
		"logout":       {Method: "POST", URL: "/auth/logout", Auth: "user", Description: "Revoke the current access token"},
		"list_coffees": {Method: "GET", URL: "/coffee/", Auth: "none", Description: "List the coffee catalog"},
		"add_coffee":   {Method: "POST", URL: "/coffee/", Auth: "admin", Description: "Add a coffee"},
		"update":       {Method: "PUT", URL: "/coffee/{id}", Auth: "admin", Description: "Update a coffee"},
		"delete":       {Method: "DELETE", URL: "/coffee/{id}", Auth: "admin", Description: "Delete a coffee"},
		"purchase":     {Method: "POST", URL: "/purchase/", Auth: "user", Description: "Buy coffee"},
		"history":      {Method: "GET", URL: "/purchase/", Auth: "user", Description: "List your purchases"},
	},
}
