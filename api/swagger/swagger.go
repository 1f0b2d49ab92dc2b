package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Tutor Center API",
        "description": "Enrollment session scheduling and makeup lifecycle engine",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Enrollments", "description": "Student-tutor contracts and generation"},
        {"name": "Sessions", "description": "Session lifecycle and attendance"},
        {"name": "Makeups", "description": "Makeup proposals and resolution"},
        {"name": "Extensions", "description": "Deadline extension workflow"},
        {"name": "PlannedReschedules", "description": "Declared future absences"},
        {"name": "Holidays", "description": "Non-teaching calendar"},
        {"name": "Generation", "description": "Batch generation driver"}
    ],
    "paths": {
        "/enrollments": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List enrollments",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Enrollments"],
                "summary": "Register a student-tutor enrollment",
                "responses": {"201": {"description": "Created"}, "409": {"description": "Slot already occupied"}}
            }
        },
        "/enrollments/{id}": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Get an enrollment with its effective end date",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            }
        },
        "/enrollments/{id}/confirm-payment": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Confirm payment and generate the session set",
                "responses": {"200": {"description": "OK"}, "409": {"description": "Invalid state transition"}}
            }
        },
        "/enrollments/{id}/cancel": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Cancel an enrollment",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/enrollments/{id}/generate": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Generate the enrollment's sessions",
                "responses": {"200": {"description": "OK"}, "409": {"description": "Duplicate session conflict"}}
            }
        },
        "/enrollments/{id}/sessions": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List the enrollment's sessions chronologically",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/enrollments/{id}/planned-reschedules": {
            "get": {
                "tags": ["PlannedReschedules"],
                "summary": "List declarations for the enrollment",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["PlannedReschedules"],
                "summary": "Declare a future absence",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/planned-reschedules/{id}/cancel": {
            "post": {
                "tags": ["PlannedReschedules"],
                "summary": "Withdraw a pending declaration",
                "responses": {"200": {"description": "OK"}, "409": {"description": "Already consumed"}}
            }
        },
        "/sessions/{id}/attendance": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Mark attendance outcome",
                "responses": {"200": {"description": "OK"}, "409": {"description": "Invalid state transition"}}
            }
        },
        "/sessions/{id}/reschedule": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Flag a session as disrupted",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/sessions/{id}/cancel": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Cancel a session",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/sessions/{id}/makeup-proposals": {
            "get": {
                "tags": ["Makeups"],
                "summary": "List proposals for a session",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Makeups"],
                "summary": "Propose a makeup slot",
                "responses": {"201": {"description": "Created"}, "422": {"description": "Makeup window exceeded"}}
            }
        },
        "/makeup-proposals/{id}/resolve": {
            "post": {
                "tags": ["Makeups"],
                "summary": "Accept or reject a proposal",
                "responses": {"200": {"description": "OK"}, "409": {"description": "Proposal already resolved"}}
            }
        },
        "/makeup/pending": {
            "get": {
                "tags": ["Makeups"],
                "summary": "Aging view over pending makeups",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/sessions/{id}/extension-requests": {
            "post": {
                "tags": ["Extensions"],
                "summary": "File a deadline-extension request",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/extension-requests/{id}/approve": {
            "post": {
                "tags": ["Extensions"],
                "summary": "Approve: extend enrollment and move session atomically",
                "responses": {"200": {"description": "OK"}, "409": {"description": "Already reviewed"}}
            }
        },
        "/extension-requests/{id}/reject": {
            "post": {
                "tags": ["Extensions"],
                "summary": "Reject an extension request",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/holidays": {
            "get": {
                "tags": ["Holidays"],
                "summary": "List holidays",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Holidays"],
                "summary": "Register a non-teaching date",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/holidays/import": {
            "post": {
                "tags": ["Holidays"],
                "summary": "Import a batch of non-teaching dates",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/admin/generation/run": {
            "post": {
                "tags": ["Generation"],
                "summary": "Run one batch generation sweep",
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
