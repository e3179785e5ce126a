package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates a malformed JSON request body or frame.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates trailing content after a valid JSON body.
	ErrExtraContentInBody = 1004

	// ErrRequestEntityTooLarge indicates the request body exceeded the server limit.
	ErrRequestEntityTooLarge = 1005

	// ErrRateLimitExceeded indicates the client exceeded its request rate.
	ErrRateLimitExceeded = 1006
)

// 2xxx: Messaging Business Logic Errors
const (
	// ErrConversationRequired indicates an event that requires a conversationId arrived without one.
	ErrConversationRequired = 2101

	// ErrContentRequired indicates a send_message event with no content.
	ErrContentRequired = 2102

	// ErrMessageContentTooLong indicates message content exceeded the maximum length.
	ErrMessageContentTooLong = 2103

	// ErrMessageRequired indicates an event that requires a messageId arrived without one.
	ErrMessageRequired = 2104

	// ErrMessageNotFound indicates the referenced message does not exist.
	ErrMessageNotFound = 2105

	// ErrAttachmentCountInvalid indicates zero or too many attachments on one message.
	ErrAttachmentCountInvalid = 2201

	// ErrAttachmentKeyInvalid indicates an attachment key outside the sender's conversation prefix.
	ErrAttachmentKeyInvalid = 2202

	// ErrAttachmentTypeInvalid indicates a disallowed attachment file type.
	ErrAttachmentTypeInvalid = 2203

	// ErrFileSizeTooLarge indicates an attachment beyond the size limit.
	ErrFileSizeTooLarge = 2204

	// ErrUnsupportedEventType indicates an inbound websocket event with an unknown type tag.
	ErrUnsupportedEventType = 2301
)

// 3xxx: Session and Security Errors
const (
	// ErrUnauthorized indicates a request without a usable platform session.
	ErrUnauthorized = 3001

	// ErrInvalidCredentials indicates a connect-time credential that failed verification.
	ErrInvalidCredentials = 3002
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified internal error.
	ErrUnknown = 5000

	// ErrPersistenceFailed indicates the durable message store rejected an operation.
	ErrPersistenceFailed = 5001

	// ErrFileStorageFailed indicates the attachment storage backend failed.
	ErrFileStorageFailed = 5002
)
