package portal

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type applicationConfig struct {
	Tipos []fileType `json:"tipos"`
}

type fileType struct {
	Codigo string `json:"codigo"`
	ID     string `json:"id"`
}

type uploadIntentRequest struct {
	IDCargue     string   `json:"id_cargue"`
	IDTipo       string   `json:"id_tipo"`
	Organizacion string   `json:"organizacion"`
	Cantidad     int      `json:"cantidad"`
	Nombres      []string `json:"nombres"`
}

type fileMetadataRequest struct {
	Codigo    string   `json:"codigo"`
	Mensajes  []string `json:"mensajes"`
	IDArchivo string   `json:"id_archivo"`
	IDCargue  string   `json:"id_cargue"`
	Extension string   `json:"extension"`
	Tamano    float64  `json:"tamano"`
	IDTipo    string   `json:"id_tipo"`
	Nombre    string   `json:"nombre"`
}

type findLoadRequest struct {
	ID           string `json:"id"`
	FechaInicial string `json:"fecha_inicial"`
	FechaFinal   string `json:"fecha_final"`
	Organizacion string `json:"organizacion"`
}
