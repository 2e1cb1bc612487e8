package domain

// ResponseCode is an RFC 3977 status code. Named constants cover every
// code the Protocol Engine and Peer Synchronizer emit or expect; an
// untyped int is still accepted on the wire (unrecognized peers may send
// codes outside this list), so ResponseCode is a plain int alias rather
// than a closed enum.
type ResponseCode int

const (
	CodeHelpFollows         ResponseCode = 100
	CodeCapabilitiesFollow  ResponseCode = 101
	CodeDate                ResponseCode = 111
	CodePostingAllowed      ResponseCode = 200
	CodeReadingOnly         ResponseCode = 201
	CodeClosing             ResponseCode = 205
	CodeAuthAccepted        ResponseCode = 281
	CodeGroupSelected       ResponseCode = 211
	CodeListFollows         ResponseCode = 215
	CodeArticleFollows      ResponseCode = 220
	CodeHeadFollows         ResponseCode = 221
	CodeBodyFollows         ResponseCode = 222
	CodeArticleExists       ResponseCode = 223
	CodeOverviewFollows     ResponseCode = 224
	CodeNewGroupsFollow     ResponseCode = 231
	CodeNewNewsFollow       ResponseCode = 230
	CodeTransferAccepted    ResponseCode = 235
	CodePosted              ResponseCode = 240
	CodeSendArticleToTransfer ResponseCode = 335
	CodeSendArticleToPost   ResponseCode = 340
	CodeAuthContinue        ResponseCode = 381
	CodeNoSuchGroup         ResponseCode = 411
	CodeNoGroupSelected     ResponseCode = 412
	CodeNoCurrentArticle    ResponseCode = 420
	CodeNoNextArticle       ResponseCode = 421
	CodeNoPrevArticle       ResponseCode = 422
	CodeNoSuchArticleNumber ResponseCode = 423
	CodeNoSuchArticleId     ResponseCode = 430
	CodeTransferNotWanted   ResponseCode = 435
	CodeTransferRetryLater  ResponseCode = 436
	CodeTransferRejected    ResponseCode = 437
	CodeAuthRequired        ResponseCode = 480
	CodePostingNotPermitted ResponseCode = 440
	CodePostingFailed       ResponseCode = 441
	CodeSyntaxError         ResponseCode = 500
	CodeCommandSyntaxError  ResponseCode = 501
	CodeCommandUnavailable  ResponseCode = 502
	CodeFeatureNotSupported ResponseCode = 503
)
