// Package http holds the request and JSON response helpers used by the
// container inspector.
//
// # Request
//
//	req := gohttp.NewRequest(r)
//	req.Query("tag")              // query-string value
//	req.Query("public", "true")   // with fallback
//	req.QueryAll()                // map[string]any, ready for validation.Validate
//	req.RouteParam("id")          // chi URL parameter
//
// # Response
//
//	res := gohttp.NewResponse(w)
//
//	res.JSON(200, data)           // raw JSON with status
//	res.Success(data)             // 200 {"data": ...}
//
//	res.Error(400, "bad input")   // {"message": "bad input"}
//	res.NotFound()                // 404 {"message": "Not found."}
//	res.ServerError()             // 500 {"message": "Server Error."}
//	res.ValidationError(errs)     // 422 {"errors": {"field": ["msg"]}}
package http
