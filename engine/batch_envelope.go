package engine

// rawBatchEncryptResponse mirrors {results:[{success, encryptedData?, originalData?}]}.
type rawBatchEncryptResponse struct {
	Results []struct {
		Success       bool   `json:"success"`
		EncryptedData string `json:"encryptedData,omitempty"`
		OriginalData  string `json:"originalData,omitempty"`
	} `json:"results"`
}

// rawBatchDecryptResponse mirrors {results:[{success, decryptedData?, originalData?}]}.
type rawBatchDecryptResponse struct {
	Results []struct {
		Success       bool   `json:"success"`
		DecryptedData string `json:"decryptedData,omitempty"`
		OriginalData  string `json:"originalData,omitempty"`
	} `json:"results"`
}

func parseBatchEncryptResponse(body []byte) ([]BatchResult, error) {
	var raw rawBatchEncryptResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, ErrConnection
	}
	out := make([]BatchResult, len(raw.Results))
	for i, r := range raw.Results {
		if r.Success {
			out[i] = BatchResult{Success: true, Value: r.EncryptedData}
		} else {
			out[i] = BatchResult{Success: false, Value: r.OriginalData}
		}
	}
	return out, nil
}

func parseBatchDecryptResponse(body []byte) ([]BatchResult, error) {
	var raw rawBatchDecryptResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, ErrConnection
	}
	out := make([]BatchResult, len(raw.Results))
	for i, r := range raw.Results {
		if r.Success {
			out[i] = BatchResult{Success: true, Value: r.DecryptedData}
		} else {
			out[i] = BatchResult{Success: false, Value: r.OriginalData}
		}
	}
	return out, nil
}
