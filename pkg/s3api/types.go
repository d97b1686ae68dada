package s3api

import "encoding/xml"

// Response shapes are hand-rolled against encoding/xml rather than
// reused from aws-sdk-go-v2/service/s3: that module's types are built
// for decoding a server's response on the client side, not for
// encoding one, and trusting their xml tags to round-trip correctly
// in the other direction without ever running them is the riskier
// path (see DESIGN.md).

type s3Bucket struct {
	Name         string `xml:"Name"`
	CreationDate string `xml:"CreationDate"`
}

type listAllMyBucketsResult struct {
	XMLName xml.Name `xml:"ListAllMyBucketsResult"`
	Owner   struct {
		ID          string `xml:"ID"`
		DisplayName string `xml:"DisplayName"`
	} `xml:"Owner"`
	Buckets struct {
		Bucket []s3Bucket `xml:"Bucket"`
	} `xml:"Buckets"`
}

type s3Content struct {
	Key          string `xml:"Key"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
	Size         int64  `xml:"Size"`
	StorageClass string `xml:"StorageClass"`
}

type s3CommonPrefix struct {
	Prefix string `xml:"Prefix"`
}

// listBucketResult is the V1 ListObjects shape (marker-based paging).
type listBucketResult struct {
	XMLName        xml.Name         `xml:"ListBucketResult"`
	Name           string           `xml:"Name"`
	Prefix         string           `xml:"Prefix"`
	Marker         string           `xml:"Marker"`
	NextMarker     string           `xml:"NextMarker,omitempty"`
	MaxKeys        int              `xml:"MaxKeys"`
	Delimiter      string           `xml:"Delimiter,omitempty"`
	IsTruncated    bool             `xml:"IsTruncated"`
	Contents       []s3Content      `xml:"Contents"`
	CommonPrefixes []s3CommonPrefix `xml:"CommonPrefixes,omitempty"`
}

// listBucketResultV2 is the ListObjectsV2 shape (continuation-token paging).
type listBucketResultV2 struct {
	XMLName               xml.Name         `xml:"ListBucketResult"`
	Name                  string           `xml:"Name"`
	Prefix                string           `xml:"Prefix"`
	StartAfter            string           `xml:"StartAfter,omitempty"`
	ContinuationToken     string           `xml:"ContinuationToken,omitempty"`
	NextContinuationToken string           `xml:"NextContinuationToken,omitempty"`
	KeyCount              int              `xml:"KeyCount"`
	MaxKeys               int              `xml:"MaxKeys"`
	Delimiter             string           `xml:"Delimiter,omitempty"`
	IsTruncated           bool             `xml:"IsTruncated"`
	Contents              []s3Content      `xml:"Contents"`
	CommonPrefixes        []s3CommonPrefix `xml:"CommonPrefixes,omitempty"`
}

type s3Upload struct {
	Key       string `xml:"Key"`
	UploadID  string `xml:"UploadId"`
	Initiated string `xml:"Initiated"`
}

type listMultipartUploadsResult struct {
	XMLName            xml.Name   `xml:"ListMultipartUploadsResult"`
	Bucket             string     `xml:"Bucket"`
	KeyMarker          string     `xml:"KeyMarker"`
	UploadIDMarker     string     `xml:"UploadIdMarker"`
	NextKeyMarker      string     `xml:"NextKeyMarker,omitempty"`
	NextUploadIDMarker string     `xml:"NextUploadIdMarker,omitempty"`
	MaxUploads         int        `xml:"MaxUploads"`
	IsTruncated        bool       `xml:"IsTruncated"`
	Upload             []s3Upload `xml:"Upload"`
}

type initiateMultipartUploadResult struct {
	XMLName  xml.Name `xml:"InitiateMultipartUploadResult"`
	Bucket   string   `xml:"Bucket"`
	Key      string   `xml:"Key"`
	UploadID string   `xml:"UploadId"`
}

type s3Part struct {
	PartNumber   int    `xml:"PartNumber"`
	ETag         string `xml:"ETag"`
	Size         int64  `xml:"Size"`
	LastModified string `xml:"LastModified,omitempty"`
}

type listPartsResult struct {
	XMLName              xml.Name `xml:"ListPartsResult"`
	Bucket               string   `xml:"Bucket"`
	Key                  string   `xml:"Key"`
	UploadID             string   `xml:"UploadId"`
	PartNumberMarker     int      `xml:"PartNumberMarker"`
	NextPartNumberMarker int      `xml:"NextPartNumberMarker,omitempty"`
	MaxParts             int      `xml:"MaxParts"`
	IsTruncated          bool     `xml:"IsTruncated"`
	Part                 []s3Part `xml:"Part"`
}

// completeMultipartUpload is the request body of CompleteMPU: the
// client's view of which parts to assemble, in order. The server
// assembles from its own session state (see handlers.go); this body
// is decoded only to check that it parses, and neither its ETags nor
// its ordering are consulted.
type completeMultipartUpload struct {
	XMLName xml.Name `xml:"CompleteMultipartUpload"`
	Part    []struct {
		PartNumber int    `xml:"PartNumber"`
		ETag       string `xml:"ETag"`
	} `xml:"Part"`
}

type completeMultipartUploadResult struct {
	XMLName  xml.Name `xml:"CompleteMultipartUploadResult"`
	Location string   `xml:"Location"`
	Bucket   string   `xml:"Bucket"`
	Key      string   `xml:"Key"`
	ETag     string   `xml:"ETag"`
}

// deleteRequest is the POST ?delete XML batch-delete body.
type deleteRequest struct {
	XMLName xml.Name `xml:"Delete"`
	Object  []struct {
		Key string `xml:"Key"`
	} `xml:"Object"`
	Quiet bool `xml:"Quiet"`
}

type deletedEntry struct {
	Key string `xml:"Key"`
}

type deleteErrorEntry struct {
	Key     string `xml:"Key"`
	Code    string `xml:"Code"`
	Message string `xml:"Message"`
}

type deleteResult struct {
	XMLName xml.Name           `xml:"DeleteResult"`
	Deleted []deletedEntry     `xml:"Deleted,omitempty"`
	Error   []deleteErrorEntry `xml:"Error,omitempty"`
}
